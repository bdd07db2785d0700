package pipeline

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/safegate/internal/model"
	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/pkg/logger"
	"github.com/GoPolymarket/safegate/internal/pkg/metrics"
	"github.com/GoPolymarket/safegate/internal/ratelimit"
	"github.com/GoPolymarket/safegate/internal/signer"
	"github.com/GoPolymarket/safegate/internal/transport"
)

// Rate-limit bucket names. Submission and cancellation carry separate
// burst and sustained windows; the pipeline chains them in order.
const (
	BucketSubmitBurst = "order_submit_burst"
	BucketSubmit      = "order_submit"
	BucketCancelBurst = "order_cancel_burst"
	BucketCancel      = "order_cancel"
)

// collateral amounts are expressed in 6-decimal USDC units
var microUnit = decimal.New(1, 6)

// Credentials are the L2 API credentials attached to authenticated
// exchange requests.
type Credentials struct {
	ApiKey     string
	Secret     string
	Passphrase string
}

// NonceSource yields the exchange-side order nonce for a maker.
type NonceSource interface {
	ExchangeNonce(ctx context.Context, maker common.Address) (*big.Int, error)
}

// Pipeline turns a validated order intent into a submitted exchange order
// or a classified failure. It owns rate-limit admission and response
// classification; it never constructs raw sockets.
type Pipeline struct {
	limiter   *ratelimit.Limiter
	transport transport.Transport
	baseURL   string
	creds     Credentials
	nonces    NonceSource // optional; nonce 0 when absent
}

func New(limiter *ratelimit.Limiter, t transport.Transport, baseURL string, creds Credentials, nonces NonceSource) *Pipeline {
	return &Pipeline{
		limiter:   limiter,
		transport: t,
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		creds:     creds,
		nonces:    nonces,
	}
}

// Submit signs and submits a single order on behalf of the derived signer,
// with the user's smart wallet as maker. The returned result is terminal;
// rejections are never retried here.
func (p *Pipeline) Submit(ctx context.Context, intent model.OrderIntent, s *signer.Signer, fundingWallet common.Address) (*model.OrderResult, error) {
	result := &model.OrderResult{State: model.StateBuilt}

	order, err := p.buildOrder(ctx, intent, s, fundingWallet)
	if err != nil {
		return result, err
	}

	for _, bucket := range []string{BucketSubmitBurst, BucketSubmit} {
		if err := p.limiter.Admit(ctx, bucket); err != nil {
			return result, apperrors.New(apperrors.ErrInternal, "admission cancelled", err)
		}
	}
	result.State = model.StateAdmitted

	signature, err := s.SignOrder(order, intent.NegRisk)
	if err != nil {
		return result, apperrors.New(apperrors.ErrInternal, "order signing failed", err)
	}
	result.State = model.StateSigned

	body, err := json.Marshal(map[string]any{
		"order": map[string]any{
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
			"signer":        order.Signer.Hex(),
			"taker":         order.Taker.Hex(),
			"tokenId":       order.TokenID.String(),
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"expiration":    order.Expiration.String(),
			"nonce":         order.Nonce.String(),
			"feeRateBps":    order.FeeRateBps.String(),
			"side":          intent.Side,
			"signatureType": order.SignatureType,
			"signature":     signature,
		},
		"owner":     p.creds.ApiKey,
		"orderType": normalizeOrderType(intent.OrderType),
	})
	if err != nil {
		return result, apperrors.New(apperrors.ErrInternal, "failed to encode order", err)
	}

	resp, err := p.send(ctx, http.MethodPost, "/order", body)
	result.State = model.StateSubmitted
	if err != nil {
		return p.classifyTransportFailure(result, intent.Side, err)
	}

	return p.classifyResponse(result, intent.Side, resp, fundingWallet)
}

// Cancel asks the exchange to cancel a resting order. Cancellation has its
// own bucket set so a cancel storm cannot starve submissions.
func (p *Pipeline) Cancel(ctx context.Context, orderID string) (*model.OrderResult, error) {
	result := &model.OrderResult{State: model.StateBuilt, OrderID: orderID}

	if strings.TrimSpace(orderID) == "" {
		return result, apperrors.NewInvalidRequest("order id is required")
	}

	for _, bucket := range []string{BucketCancelBurst, BucketCancel} {
		if err := p.limiter.Admit(ctx, bucket); err != nil {
			return result, apperrors.New(apperrors.ErrInternal, "admission cancelled", err)
		}
	}
	result.State = model.StateAdmitted

	body, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		return result, apperrors.New(apperrors.ErrInternal, "failed to encode cancel request", err)
	}

	resp, err := p.send(ctx, http.MethodDelete, "/order", body)
	result.State = model.StateSubmitted
	if err != nil {
		return p.classifyTransportFailure(result, "", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		result.State = model.StateAccepted
		result.Status = "canceled"
		return result, nil
	}

	reason := classifyRejection(resp.StatusCode, resp.Body, "")
	result.State = model.StateRejected
	result.Reason = string(reason.Type)
	result.RawBody = strings.TrimSpace(string(resp.Body))
	return result, reason
}

func (p *Pipeline) buildOrder(ctx context.Context, intent model.OrderIntent, s *signer.Signer, fundingWallet common.Address) (*signer.Order, error) {
	price := decimal.NewFromFloat(intent.Price)
	size := decimal.NewFromFloat(intent.Size)
	notional := price.Mul(size)

	var makerAmount, takerAmount decimal.Decimal
	var side uint8
	switch strings.ToUpper(intent.Side) {
	case "BUY":
		side = 0
		makerAmount = notional
		takerAmount = size
	case "SELL":
		side = 1
		makerAmount = size
		takerAmount = notional
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidRequest, "unknown side %q", intent.Side)
	}

	tokenID, ok := new(big.Int).SetString(intent.TokenID, 10)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrInvalidRequest, "token id %q is not numeric", intent.TokenID)
	}

	nonce := big.NewInt(0)
	if p.nonces != nil {
		fetched, err := p.nonces.ExchangeNonce(ctx, fundingWallet)
		if err == nil {
			nonce = fetched
		} else {
			logger.Warn("exchange nonce fetch failed, using 0", "maker", fundingWallet.Hex(), "error", err)
		}
	}

	expiration := big.NewInt(0)
	if intent.Expiration > 0 {
		expiration = big.NewInt(intent.Expiration)
	}

	return &signer.Order{
		Salt:          newSalt(),
		Maker:         fundingWallet,
		Signer:        s.Address(),
		Taker:         common.Address{},
		TokenID:       tokenID,
		MakerAmount:   makerAmount.Mul(microUnit).Truncate(0).BigInt(),
		TakerAmount:   takerAmount.Mul(microUnit).Truncate(0).BigInt(),
		Expiration:    expiration,
		Nonce:         nonce,
		FeeRateBps:    big.NewInt(0),
		Side:          side,
		SignatureType: signer.SignatureGnosisSafe,
	}, nil
}

func (p *Pipeline) send(ctx context.Context, method, path string, body []byte) (*transport.Response, error) {
	return p.transport.Send(ctx, &transport.Request{
		Method:  method,
		URL:     p.baseURL + path,
		Headers: p.authHeaders(method, path, body),
		Body:    body,
	})
}

// authHeaders builds the exchange's L2 HMAC headers over
// timestamp + method + path + body.
func (p *Pipeline) authHeaders(method, path string, body []byte) map[string]string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(p.creds.Secret))
	mac.Write([]byte(ts + method + path))
	mac.Write(body)
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_API_KEY":    p.creds.ApiKey,
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": p.creds.Passphrase,
	}
}

// classifyResponse applies the single authoritative acceptance rule: an
// order id in the body. A 2xx status without an id is still a rejection.
func (p *Pipeline) classifyResponse(result *model.OrderResult, side string, resp *transport.Response, fundingWallet common.Address) (*model.OrderResult, error) {
	var parsed upstreamResponse
	_ = json.Unmarshal(resp.Body, &parsed)

	if id := parsed.id(); id != "" {
		result.State = model.StateAccepted
		result.OrderID = id
		result.Status = parsed.Status
		metrics.OrdersTotal.WithLabelValues("accepted", side).Inc()
		logger.Info("order accepted", "order_id", id, "status", parsed.Status, "side", side)
		return result, nil
	}

	reason := classifyRejection(resp.StatusCode, resp.Body, fundingWallet.Hex())
	result.State = model.StateRejected
	result.Reason = string(reason.Type)
	result.RawBody = strings.TrimSpace(string(resp.Body))
	metrics.OrdersTotal.WithLabelValues("rejected", side).Inc()
	metrics.OrderRejects.WithLabelValues(string(reason.Type)).Inc()
	logger.Warn("order rejected", "reason", reason.Type, "side", side, "status_code", resp.StatusCode)
	return result, reason
}

// classifyTransportFailure keeps network failures distinct from upstream
// rejections. A redirect loop is how the proxy path signals throttling, so
// it maps to Throttled; everything else stays a transport error. No order
// id was assigned in either case, so a retry cannot double-submit.
func (p *Pipeline) classifyTransportFailure(result *model.OrderResult, side string, err error) (*model.OrderResult, error) {
	if transport.IsRedirectLoop(err) {
		result.State = model.StateRejected
		result.Reason = string(apperrors.ErrThrottled)
		if side != "" {
			metrics.OrdersTotal.WithLabelValues("throttled", side).Inc()
		}
		return result, apperrors.New(apperrors.ErrThrottled, "transport detected a redirect loop", err)
	}

	result.State = model.StateTransportFailed
	result.Reason = string(apperrors.ErrTransport)
	if side != "" {
		metrics.OrdersTotal.WithLabelValues("transport_failed", side).Inc()
	}
	return result, apperrors.Wrap(err)
}

func newSalt() *big.Int {
	id := uuid.New()
	return new(big.Int).SetBytes(id[:])
}

func normalizeOrderType(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "GTD":
		return "GTD"
	case "FAK":
		return "FAK"
	case "FOK":
		return "FOK"
	default:
		return "GTC"
	}
}
