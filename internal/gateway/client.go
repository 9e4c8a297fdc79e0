package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

const maxResponseBody = 1 << 20 // 1MB

// Client holds what every session shares: backend address, transport and timeout.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
	sfg     singleflight.Group // one in-flight cart fetch per user
	breaker *gobreaker.CircuitBreaker[result]

	breakerSettings *gobreaker.Settings
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithBreakerSettings replaces the default circuit breaker settings.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(cl *Client) {
		cl.breakerSettings = &st
	}
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout: timeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	st := defaultBreakerSettings()
	if c.breakerSettings != nil {
		st = *c.breakerSettings
	}
	st.IsSuccessful = breakerSuccess
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn("backend circuit breaker changed state",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	c.breaker = gobreaker.NewCircuitBreaker[result](st)
	return c
}

// For binds the client to a session.
func (c *Client) For(sess *session.Context) *Gateway {
	return &Gateway{client: c, sess: sess}
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

type request struct {
	method  string
	path    string
	body    any
	headers map[string]string
}

// do sends one authenticated call through the circuit breaker. A transport failure, timeout
// or open breaker is ErrNetwork; 401/403 is ErrUnauthenticated; every other non-2xx status
// is a *StatusError.
func (c *Client) do(ctx context.Context, token string, req request) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	res, err := c.breaker.Execute(func() (result, error) {
		return c.send(httpReq)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, 0, fmt.Errorf("%w: %s %s: %w", domain.ErrNetwork, req.method, req.path, err)
	}
	if errors.Is(err, domain.ErrNetwork) {
		return nil, res.status, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	return res.data, res.status, err
}

type result struct {
	data   []byte
	status int
}

func (c *Client) send(httpReq *http.Request) (result, error) {
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return result{}, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return result{status: resp.StatusCode}, fmt.Errorf("%w: read body: %w", domain.ErrNetwork, err)
	}

	res := result{data: data, status: resp.StatusCode}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return res, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return res, fmt.Errorf("%w: backend returned %d", domain.ErrUnauthenticated, resp.StatusCode)
	default:
		return res, &StatusError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}
}

// errorMessage extracts the backend's error text from {error} or {message} bodies.
func errorMessage(data []byte, status int) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(status)
}

func isStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range codes {
		if se.Status == code {
			return true
		}
	}
	return false
}
