package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/config"
	"github.com/spec-kit/crm-console/internal/observability"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

// Error is a non-2xx response from the CRM backend.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upstream responded %d", e.Status)
	}
	return fmt.Sprintf("upstream responded %d: %s", e.Status, e.Detail)
}

// AsError extracts the backend error from err.
func AsError(err error) (*Error, bool) {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}

// IsNotFound reports a 404 from the backend.
func IsNotFound(err error) bool {
	upErr, ok := AsError(err)
	return ok && upErr.Status == http.StatusNotFound
}

type response struct {
	status int
	body   []byte
}

// Client calls the CRM REST backend on behalf of one caller.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	metrics *observability.Metrics
	logger  *zap.Logger
	token   string
}

// NewHTTPClient builds the pooled transport shared by every caller.
func NewHTTPClient(cfg config.UpstreamConfig) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout()}
}

// New constructs a client without caller credentials. Use WithToken per caller.
// The circuit breaker is shared by every derived client; it opens on transport
// failures and 5xx responses and never retries.
func New(cfg config.UpstreamConfig, httpClient *http.Client, metrics *observability.Metrics, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	failures := uint32(cfg.BreakerFailures)
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "crm-backend",
		MaxRequests: 1,
		Timeout:     time.Duration(cfg.BreakerOpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			upErr, ok := AsError(err)
			return ok && upErr.Status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}
}

// WithToken returns a copy of the client that forwards token as the caller's bearer.
func (c *Client) WithToken(token string) *Client {
	cpy := *c
	cpy.token = token
	return &cpy
}

// do issues one request. Transport failures come back as NETWORK_ERROR domain errors,
// non-2xx responses as *Error. out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		raw, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, err
		}
		res := &response{status: httpResp.StatusCode, body: raw}
		if httpResp.StatusCode >= 300 {
			return res, &Error{Status: httpResp.StatusCode, Detail: extractDetail(raw)}
		}
		return res, nil
	})
	if err != nil {
		if upErr, ok := AsError(err); ok {
			c.metrics.RecordUpstream(op, fmt.Sprintf("status_%d", upErr.Status))
			return upErr
		}
		c.metrics.RecordUpstream(op, "network_error")
		c.logger.Warn("upstream call failed", zap.String("operation", op), zap.Error(err))
		return apperrors.NewNetworkError(err)
	}
	c.metrics.RecordUpstream(op, "ok")

	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// extractDetail pulls the human readable error out of a backend error body. The backend
// uses {"detail": "..."} and, for schema failures, {"detail": [{"msg": "..."}]}.
func extractDetail(raw []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil {
			return text
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	return envelope.Message
}
