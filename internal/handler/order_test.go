package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/safegate/internal/derive"
	"github.com/GoPolymarket/safegate/internal/middleware"
	"github.com/GoPolymarket/safegate/internal/pipeline"
	"github.com/GoPolymarket/safegate/internal/ratelimit"
	"github.com/GoPolymarket/safegate/internal/repository"
	"github.com/GoPolymarket/safegate/internal/safe"
	"github.com/GoPolymarket/safegate/internal/service"
	"github.com/GoPolymarket/safegate/internal/transport"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChain struct{}

func (stubChain) GetCode(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}
func (stubChain) GetOwners(context.Context, common.Address) ([]common.Address, error) {
	return nil, nil
}
func (stubChain) GetThreshold(context.Context, common.Address) (int, error) { return 1, nil }

type stubRelay struct{}

func (stubRelay) Submit(context.Context, safe.RelayRequest) (string, error) { return "tx-1", nil }
func (stubRelay) GetStatus(context.Context, string) (*safe.RelayStatus, error) {
	return &safe.RelayStatus{Executed: true, Successful: true}, nil
}

type stubTransport struct {
	resp *transport.Response
}

func (s stubTransport) Send(context.Context, *transport.Request) (*transport.Response, error) {
	return s.resp, nil
}

func testRouter(t *testing.T, resp *transport.Response) *gin.Engine {
	t.Helper()

	deriver, err := derive.NewDeriver(testMnemonic, 137)
	require.NoError(t, err)
	coordinator, err := safe.NewCoordinator(safe.NewDefaultPredictor(), stubChain{}, stubRelay{}, safe.Options{
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	})
	require.NoError(t, err)

	limiter := ratelimit.New()
	limiter.Register(pipeline.BucketSubmitBurst, 100, time.Second)
	limiter.Register(pipeline.BucketSubmit, 1000, time.Minute)
	limiter.Register(pipeline.BucketCancelBurst, 100, time.Second)
	limiter.Register(pipeline.BucketCancel, 1000, time.Minute)

	pipe := pipeline.New(limiter, stubTransport{resp: resp}, "https://clob.example.com", pipeline.Credentials{
		ApiKey: "k", Secret: "czo=", Passphrase: "p",
	}, nil)

	svc := service.NewExecutionService(deriver, coordinator, pipe, repository.NewMemoryWalletRepo())

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	h := NewOrderHandler(svc)
	w := NewWalletHandler(svc)
	r.POST("/v1/orders", h.PlaceOrder)
	r.DELETE("/v1/orders/:id", h.CancelOrder)
	r.GET("/v1/wallets/:address", w.Status)
	return r
}

func acceptedResponse() *transport.Response {
	return &transport.Response{
		StatusCode: 200,
		Body:       []byte(`{"orderID":"O1","status":"live","success":true}`),
	}
}

func TestPlaceOrderEndpoint(t *testing.T) {
	r := testRouter(t, acceptedResponse())

	body := `{"user":"0x1111111111111111111111111111111111111111","token_id":"123","price":0.62,"size":10,"side":"BUY"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"O1"`)
	assert.Contains(t, w.Body.String(), "ACCEPTED")
}

func TestPlaceOrderEndpointBadBody(t *testing.T) {
	r := testRouter(t, acceptedResponse())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(`{"user":""}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceOrderEndpointRejectionCarriesResult(t *testing.T) {
	r := testRouter(t, &transport.Response{
		StatusCode: 400,
		Body:       []byte(`{"error":"not enough balance / allowance"}`),
	})

	body := `{"user":"0x1111111111111111111111111111111111111111","token_id":"123","price":0.62,"size":10,"side":"BUY"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "REJECTED")
	assert.Contains(t, w.Body.String(), "not enough balance")
}

func TestCancelOrderEndpoint(t *testing.T) {
	r := testRouter(t, &transport.Response{StatusCode: 200, Body: []byte(`{"canceled":true}`)})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/orders/O1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWalletStatusEndpoint(t *testing.T) {
	r := testRouter(t, acceptedResponse())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/wallets/0x1111111111111111111111111111111111111111", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "signer_address")
	assert.Contains(t, w.Body.String(), `"deployed":true`)
}
