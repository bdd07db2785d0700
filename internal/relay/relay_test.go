package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/safe"
	"github.com/GoPolymarket/safegate/internal/transport"
)

type fakeTransport struct {
	lastReq *transport.Request
	resp    *transport.Response
	err     error
}

func (f *fakeTransport) Send(_ context.Context, req *transport.Request) (*transport.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestSubmit(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{
		StatusCode: 200,
		Body:       []byte(`{"transactionID":"tx-42"}`),
	}}
	c := NewClient("https://relay.example.com/", ft)

	id, err := c.Submit(context.Background(), safe.RelayRequest{
		From: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Data: []byte{0x0d, 0x58, 0x2f, 0x13},
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-42", id)
	assert.Equal(t, "https://relay.example.com/submit", ft.lastReq.URL)

	var body map[string]string
	require.NoError(t, json.Unmarshal(ft.lastReq.Body, &body))
	assert.Equal(t, "0x0d582f13", body["data"])
	assert.Equal(t, "SAFE", body["type"])
}

func TestSubmit_UpstreamRejection(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{StatusCode: 500, Body: []byte("boom")}}
	c := NewClient("https://relay.example.com", ft)

	_, err := c.Submit(context.Background(), safe.RelayRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrUpstream))
}

func TestSubmit_MissingTransactionID(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{StatusCode: 200, Body: []byte(`{}`)}}
	c := NewClient("https://relay.example.com", ft)

	_, err := c.Submit(context.Background(), safe.RelayRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrUpstream))
}

func TestGetStatus_States(t *testing.T) {
	cases := []struct {
		state      string
		executed   bool
		successful bool
	}{
		{"STATE_EXECUTED", true, true},
		{"STATE_CONFIRMED", true, true},
		{"STATE_FAILED", true, false},
		{"STATE_REVERTED", true, false},
		{"STATE_NEW", false, false},
		{"STATE_MINED", false, false},
	}

	for _, tc := range cases {
		body, _ := json.Marshal(map[string]any{
			"state":           tc.state,
			"transactionHash": "0xabc",
			"confirmations":   2,
		})
		ft := &fakeTransport{resp: &transport.Response{StatusCode: 200, Body: body}}
		c := NewClient("https://relay.example.com", ft)

		status, err := c.GetStatus(context.Background(), "tx-42")
		require.NoError(t, err, tc.state)
		assert.Equal(t, tc.executed, status.Executed, tc.state)
		assert.Equal(t, tc.successful, status.Successful, tc.state)
		assert.Equal(t, 2, status.Confirmations, tc.state)
	}
}

func TestGetStatus_TransportErrorPassesThrough(t *testing.T) {
	ft := &fakeTransport{err: apperrors.NewTransport("connection reset", nil)}
	c := NewClient("https://relay.example.com", ft)

	_, err := c.GetStatus(context.Background(), "tx-42")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrTransport))
}
