package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/safe"
	"github.com/GoPolymarket/safegate/internal/transport"
)

// Client talks to the transaction-relay service that executes wallet
// transactions on behalf of users. All traffic goes through the injected
// Transport so proxy and redirect policy stay out of this package.
type Client struct {
	baseURL   string
	transport transport.Transport
}

func NewClient(baseURL string, t transport.Transport) *Client {
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		transport: t,
	}
}

type submitRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Data string `json:"data"`
	Type string `json:"type"`
}

type submitResponse struct {
	TransactionID string `json:"transactionID"`
}

type statusResponse struct {
	State           string `json:"state"`
	TransactionHash string `json:"transactionHash"`
	Confirmations   int    `json:"confirmations"`
}

func (c *Client) Submit(ctx context.Context, req safe.RelayRequest) (string, error) {
	body, err := json.Marshal(submitRequest{
		From: req.From.Hex(),
		To:   req.To.Hex(),
		Data: hexutil.Encode(req.Data),
		Type: "SAFE",
	})
	if err != nil {
		return "", apperrors.New(apperrors.ErrInternal, "failed to encode relay request", err)
	}

	resp, err := c.transport.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/submit",
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.Newf(apperrors.ErrUpstream,
			"relay rejected submission: status %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}

	var parsed submitResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", apperrors.New(apperrors.ErrUpstream, "failed to decode relay response", err)
	}
	if parsed.TransactionID == "" {
		return "", apperrors.New(apperrors.ErrUpstream, "relay response missing transaction id", nil)
	}
	return parsed.TransactionID, nil
}

func (c *Client) GetStatus(ctx context.Context, relayTxID string) (*safe.RelayStatus, error) {
	resp, err := c.transport.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/transaction?id=%s", c.baseURL, relayTxID),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.Newf(apperrors.ErrUpstream,
			"relay status query failed: status %d", resp.StatusCode)
	}

	var parsed statusResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "failed to decode relay status", err)
	}

	status := &safe.RelayStatus{
		TxHash:        parsed.TransactionHash,
		Confirmations: parsed.Confirmations,
	}
	switch strings.ToUpper(parsed.State) {
	case "STATE_EXECUTED", "STATE_CONFIRMED":
		status.Executed = true
		status.Successful = true
	case "STATE_FAILED", "STATE_REVERTED":
		status.Executed = true
		status.Successful = false
	}
	return status, nil
}
