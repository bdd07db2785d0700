package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/GoPolymarket/safegate/internal/pkg/apperrors"
)

// Request carries everything the pipeline needs to say; it never touches
// sockets itself.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the parsed upstream reply.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Transport is the boundary through which signed requests leave the process.
// Concrete implementations own proxying, TLS, and redirect policy.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// errRedirectLoop marks a request aborted after exceeding the redirect
// ceiling. Upstream residential proxies answer throttled clients with
// redirect chains, so the pipeline treats this as a throttle signal.
var errRedirectLoop = errors.New("too many redirects")

// IsRedirectLoop reports whether err was caused by exceeding the
// redirect ceiling.
func IsRedirectLoop(err error) bool {
	return errors.Is(err, errRedirectLoop)
}

// IsTimeout reports whether err was caused by a deadline at the network layer.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

type Options struct {
	ProxyURL     string // http:// or socks5://, empty for direct
	MaxRedirects int
	Timeout      time.Duration
}

// HTTPTransport is the production Transport: pooled client, optional proxy,
// bounded redirect following.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(opts Options) (*HTTPTransport, error) {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	inner := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrConfiguration, "invalid proxy url", err)
		}
		inner.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: inner,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return errRedirectLoop
			}
			return nil
		},
	}

	return &HTTPTransport{client: client}, nil
}

func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, apperrors.NewTransport("failed to build request", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" && len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		switch {
		case IsRedirectLoop(err):
			return nil, &apperrors.AppError{
				Type:       apperrors.ErrTransport,
				Message:    fmt.Sprintf("redirect loop sending %s %s", req.Method, req.URL),
				HTTPStatus: http.StatusBadGateway,
				Cause:      err,
			}
		case IsTimeout(err):
			return nil, apperrors.NewTransport(fmt.Sprintf("timeout sending %s %s", req.Method, req.URL), err)
		default:
			return nil, apperrors.NewTransport(fmt.Sprintf("network error sending %s %s", req.Method, req.URL), err)
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransport("failed to read response body", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Headers:    resp.Header,
	}, nil
}
