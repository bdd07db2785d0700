package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/safegate/internal/model"
	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/safegate/internal/ratelimit"
	"github.com/GoPolymarket/safegate/internal/signer"
	"github.com/GoPolymarket/safegate/internal/transport"
)

type fakeTransport struct {
	mu       sync.Mutex
	requests []*transport.Request
	sentAt   []time.Time
	resp     *transport.Response
	err      error
}

func (f *fakeTransport) Send(_ context.Context, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.sentAt = append(f.sentAt, time.Now())
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testLimiter() *ratelimit.Limiter {
	l := ratelimit.New()
	l.Register(BucketSubmitBurst, 100, time.Second)
	l.Register(BucketSubmit, 1000, time.Minute)
	l.Register(BucketCancelBurst, 100, time.Second)
	l.Register(BucketCancel, 1000, time.Minute)
	return l
}

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := signer.NewSignerFromKey(key, 137)
	require.NoError(t, err)
	return s
}

var wallet = common.HexToAddress("0x9999999999999999999999999999999999999999")

func buyIntent() model.OrderIntent {
	return model.OrderIntent{TokenID: "1234", Side: "BUY", Price: 0.62, Size: 10}
}

func newTestPipeline(ft *fakeTransport, l *ratelimit.Limiter) *Pipeline {
	return New(l, ft, "https://clob.example.com", Credentials{
		ApiKey: "k", Secret: "czo=", Passphrase: "p",
	}, nil)
}

func TestSubmit_HappyPath(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{
		StatusCode: 200,
		Body:       []byte(`{"orderID":"O1","status":"submitted","success":true}`),
	}}
	p := newTestPipeline(ft, testLimiter())

	result, err := p.Submit(context.Background(), buyIntent(), testSigner(t), wallet)
	require.NoError(t, err)
	assert.True(t, result.Accepted())
	assert.Equal(t, "O1", result.OrderID)
	assert.Equal(t, "submitted", result.Status)

	require.Len(t, ft.requests, 1)
	req := ft.requests[0]
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://clob.example.com/order", req.URL)
	assert.Equal(t, "k", req.Headers["POLY_API_KEY"])
	assert.NotEmpty(t, req.Headers["POLY_SIGNATURE"])

	var payload struct {
		Order map[string]any `json:"order"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &payload))
	assert.Equal(t, wallet.Hex(), payload.Order["maker"])
	// 0.62 * 10 shares, in 6-decimal units
	assert.Equal(t, "6200000", payload.Order["makerAmount"])
	assert.Equal(t, "10000000", payload.Order["takerAmount"])
	assert.NotEmpty(t, payload.Order["signature"])
	assert.EqualValues(t, signer.SignatureGnosisSafe, payload.Order["signatureType"])
}

func TestSubmit_MissingOrderIDNeverAccepted(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{
		StatusCode: 200,
		Body:       []byte(`{"status":"live","success":true}`),
	}}
	p := newTestPipeline(ft, testLimiter())

	result, err := p.Submit(context.Background(), buyIntent(), testSigner(t), wallet)
	require.Error(t, err)
	assert.False(t, result.Accepted())
	assert.Equal(t, model.StateRejected, result.State)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrUnclassifiedRejection))
}

func TestSubmit_BodyRejectionDespite200(t *testing.T) {
	// The exchange can answer HTTP 200 while rejecting the order in the
	// body, e.g. an inclusive-bound price of 1.0.
	ft := &fakeTransport{resp: &transport.Response{
		StatusCode: 200,
		Body:       []byte(`{"errorMsg":"invalid price 1.0000, max acceptable price is 0.9990"}`),
	}}
	p := newTestPipeline(ft, testLimiter())

	intent := buyIntent()
	intent.Price = 1.0
	result, err := p.Submit(context.Background(), intent, testSigner(t), wallet)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrInvalidPrice))
	assert.Equal(t, string(apperrors.ErrInvalidPrice), result.Reason)
}

func TestSubmit_InsufficientFunds(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{
		StatusCode: 400,
		Body:       []byte(`{"errorMsg":"not enough balance / allowance"}`),
	}}
	p := newTestPipeline(ft, testLimiter())

	result, err := p.Submit(context.Background(), buyIntent(), testSigner(t), wallet)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrInsufficientFunds))
	assert.Contains(t, err.Error(), wallet.Hex())
	assert.Equal(t, model.StateRejected, result.State)
	assert.NotEmpty(t, result.RawBody)
}

func TestSubmit_InvalidSignatureSurfacesAsAuthorizationProblem(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{
		StatusCode: 400,
		Body:       []byte(`{"errorMsg":"invalid order signature"}`),
	}}
	p := newTestPipeline(ft, testLimiter())

	_, err := p.Submit(context.Background(), buyIntent(), testSigner(t), wallet)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrInvalidSignature))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Suggestion, "Re-authorize")
}

func TestSubmit_TransportFailure(t *testing.T) {
	ft := &fakeTransport{err: apperrors.NewTransport("connection reset", nil)}
	p := newTestPipeline(ft, testLimiter())

	result, err := p.Submit(context.Background(), buyIntent(), testSigner(t), wallet)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrTransport))
	assert.Equal(t, model.StateTransportFailed, result.State)
}

func TestSubmit_ThrottleThenSucceed(t *testing.T) {
	l := ratelimit.New()
	l.Register(BucketSubmitBurst, 1, 150*time.Millisecond)
	l.Register(BucketSubmit, 1000, time.Minute)
	l.Register(BucketCancelBurst, 100, time.Second)
	l.Register(BucketCancel, 1000, time.Minute)

	ft := &fakeTransport{resp: &transport.Response{
		StatusCode: 200,
		Body:       []byte(`{"orderID":"O1","status":"submitted"}`),
	}}
	p := newTestPipeline(ft, l)
	s := testSigner(t)

	_, err := p.Submit(context.Background(), buyIntent(), s, wallet)
	require.NoError(t, err)
	_, err = p.Submit(context.Background(), buyIntent(), s, wallet)
	require.NoError(t, err)

	require.Len(t, ft.sentAt, 2)
	gap := ft.sentAt[1].Sub(ft.sentAt[0])
	assert.GreaterOrEqual(t, gap, 100*time.Millisecond,
		"second submission should wait for window rollover, waited %v", gap)
}

func TestSubmit_SellAmountsSwapped(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{
		StatusCode: 200,
		Body:       []byte(`{"orderID":"O2"}`),
	}}
	p := newTestPipeline(ft, testLimiter())

	intent := model.OrderIntent{TokenID: "1234", Side: "SELL", Price: 0.4, Size: 25}
	_, err := p.Submit(context.Background(), intent, testSigner(t), wallet)
	require.NoError(t, err)

	var payload struct {
		Order map[string]any `json:"order"`
	}
	require.NoError(t, json.Unmarshal(ft.requests[0].Body, &payload))
	assert.Equal(t, "25000000", payload.Order["makerAmount"])
	assert.Equal(t, "10000000", payload.Order["takerAmount"])
}

func TestSubmit_InvalidIntent(t *testing.T) {
	p := newTestPipeline(&fakeTransport{}, testLimiter())

	_, err := p.Submit(context.Background(), model.OrderIntent{TokenID: "x", Side: "BUY", Price: 0.5, Size: 1}, testSigner(t), wallet)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrInvalidRequest))

	_, err = p.Submit(context.Background(), model.OrderIntent{TokenID: "1", Side: "HOLD", Price: 0.5, Size: 1}, testSigner(t), wallet)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrInvalidRequest))
}

func TestCancel(t *testing.T) {
	ft := &fakeTransport{resp: &transport.Response{StatusCode: 200, Body: []byte(`{"canceled":["O1"]}`)}}
	p := newTestPipeline(ft, testLimiter())

	result, err := p.Cancel(context.Background(), "O1")
	require.NoError(t, err)
	assert.Equal(t, model.StateAccepted, result.State)
	assert.Equal(t, "canceled", result.Status)

	require.Len(t, ft.requests, 1)
	assert.Equal(t, "DELETE", ft.requests[0].Method)
}

func TestCancel_EmptyID(t *testing.T) {
	p := newTestPipeline(&fakeTransport{}, testLimiter())
	_, err := p.Cancel(context.Background(), " ")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrInvalidRequest))
}
