package pipeline

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
)

// rejectionRule maps upstream error-body signatures to a classified kind.
// Rules are evaluated in order against the normalized (lowercased) body;
// extending the taxonomy means adding a row, not touching control flow.
type rejectionRule struct {
	kind     apperrors.ErrorType
	patterns []string
}

var rejectionRules = []rejectionRule{
	{apperrors.ErrInsufficientFunds, []string{
		"not enough balance",
		"insufficient balance",
		"not enough allowance",
		"insufficient allowance",
	}},
	{apperrors.ErrBelowMinimumSize, []string{
		"minimum size",
		"min size",
		"lower than the minimum",
		"below the minimum",
		"minimum order",
	}},
	{apperrors.ErrInvalidPrice, []string{
		"invalid price",
		"price out of range",
		"price must be between",
		"price not in range",
		"max acceptable price",
		"min acceptable price",
	}},
	{apperrors.ErrInvalidSignature, []string{
		"invalid signature",
		"invalid order signature",
		"signature does not match",
		"signer mismatch",
		"not an owner",
		"invalid signer",
	}},
}

// upstreamResponse is the subset of the exchange's reply the classifier
// cares about. Field layout varies between endpoints, so both spellings
// of the id are accepted.
type upstreamResponse struct {
	OrderID  string `json:"orderID"`
	OrderIDA string `json:"orderId"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	Error    string `json:"error"`
	Message  string `json:"message"`
}

func (r upstreamResponse) id() string {
	if r.OrderID != "" {
		return r.OrderID
	}
	return r.OrderIDA
}

func (r upstreamResponse) errText() string {
	for _, s := range []string{r.ErrorMsg, r.Error, r.Message} {
		if s != "" {
			return s
		}
	}
	return ""
}

// classifyRejection turns an upstream reply without an order id into a
// typed rejection. statusCode 429 wins over body matching; otherwise the
// ordered rule set decides and anything unmatched is surfaced raw. The
// funding wallet is named in balance-related messages because it, not the
// signer, is the account that needs a top-up or approval.
func classifyRejection(statusCode int, body []byte, fundingWallet string) *apperrors.AppError {
	raw := strings.TrimSpace(string(body))

	if statusCode == http.StatusTooManyRequests {
		return apperrors.Newf(apperrors.ErrThrottled, "upstream throttled the request: %s", raw)
	}

	var parsed upstreamResponse
	_ = json.Unmarshal(body, &parsed)

	haystack := strings.ToLower(raw)
	if msg := parsed.errText(); msg != "" {
		haystack = strings.ToLower(msg)
	}

	for _, rule := range rejectionRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(haystack, pattern) {
				switch rule.kind {
				case apperrors.ErrInsufficientFunds:
					return apperrors.Newf(rule.kind,
						"funding wallet %s lacks balance or allowance: %s", fundingWallet, raw)
				case apperrors.ErrInvalidSignature:
					return apperrors.Newf(rule.kind,
						"exchange rejected the derived signer: %s", raw)
				default:
					return apperrors.Newf(rule.kind, "order rejected: %s", raw)
				}
			}
		}
	}

	return apperrors.Newf(apperrors.ErrUnclassifiedRejection, "unclassified rejection: %s", raw)
}
