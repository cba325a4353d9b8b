package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/smartdepot/storefront/pkg/circuitbreaker"
)

const maxResponseBody = 1 << 20

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment gateway returned %d: %s", e.StatusCode, e.Message)
}

// HTTPGateway talks to the provider's REST API. Calls go through a circuit
// breaker that only counts transport errors and 5xx answers as failures.
type HTTPGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
	breaker   *circuitbreaker.Breaker[[]byte]
	log       *zap.Logger
}

func NewHTTPGateway(cfg Config, log *zap.Logger) *HTTPGateway {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := circuitbreaker.DefaultSettings("payment-gateway")
	settings.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode < http.StatusInternalServerError
		}
		return err == nil
	}

	return &HTTPGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[[]byte](settings, log),
		log:     log,
	}
}

func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*CheckoutSession, error) {
	body, err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", req, "")
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	var s CheckoutSession
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if s.URL == "" {
		return nil, errors.New("checkout session without url")
	}
	return &s, nil
}

func (g *HTTPGateway) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	body, err := g.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	var s CheckoutSession
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &s, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	body, err := g.do(ctx, http.MethodPost, "/v1/refunds", req, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	var rf Refund
	if err := json.Unmarshal(body, &rf); err != nil {
		return nil, fmt.Errorf("decode refund: %w", err)
	}
	return &rf, nil
}

func (g *HTTPGateway) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	body, err := g.do(ctx, http.MethodGet, "/v1/refunds/"+url.PathEscape(refundID), nil, "")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("get refund: %w", err)
	}

	var rf Refund
	if err := json.Unmarshal(body, &rf); err != nil {
		return nil, fmt.Errorf("decode refund: %w", err)
	}
	return &rf, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload any, idempotencyKey string) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	body, err := g.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+g.secretKey)
		req.Header.Set("Accept", "application/json")
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		}
		return data, nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return nil, err
		}
		g.log.Warn("payment gateway call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("breaker", g.breaker.State()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, nil
}

// errorMessage extracts {"error":{"message":...}} when present.
func errorMessage(data []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(data))
}
