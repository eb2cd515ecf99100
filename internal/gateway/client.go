// Package gateway talks to the remote diagram service and normalizes every
// outcome into a model.Envelope.
//
// Each call makes at most one network attempt. There is no retry or backoff;
// repeated calls are made idempotent by the caller through session ids.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
)

const (
	defaultHTTPTimeout = time.Duration(protocol.DefaultTimeoutSeconds) * time.Second
	maxResponseBytes   = 32 << 20
)

// Client calls the diagram service. It is safe for concurrent use.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	logger       *zap.Logger
	newRequestID func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client. Its Timeout is left as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger for per-call debug and failure lines.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestIDFunc overrides the correlation id generator.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newRequestID = fn
		}
	}
}

// NewClient builds a client for baseURL. An empty apiKey sends no auth
// header; a non-positive timeout falls back to the default.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	c := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:       strings.TrimSpace(apiKey),
		httpClient:   &http.Client{Timeout: timeout},
		logger:       zap.NewNop(),
		newRequestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call issues one request and returns the remote envelope. body is encoded as
// JSON when non-nil.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}) model.Envelope {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return model.FailErr(protocol.ErrorCodeAPIError, err)
	}

	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.Fail(protocol.ErrorCodeAPIError, fmt.Sprintf("decode response from %s: %v", path, err))
	}
	return env
}

// CallText issues one request whose successful body is a JSON string, such
// as the outline prompt template.
func (c *Client) CallText(ctx context.Context, method, path string) (string, error) {
	raw, err := c.do(ctx, method, path, nil)
	if err != nil {
		return "", err
	}
	return decodeText(raw), nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if c.baseURL == "" {
		return nil, model.Errorf(protocol.ErrorCodeAPIError, "remote base URL is not configured", nil)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, model.Errorf(protocol.ErrorCodeAPIError, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, model.Errorf(protocol.ErrorCodeAPIError, "build request", err)
	}
	requestID := c.newRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(protocol.HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(protocol.HeaderAPIKey, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("remote call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, model.Errorf(protocol.ErrorCodeAPIError, "", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		return nil, model.Errorf(protocol.ErrorCodeAPIError, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		return nil, model.Errorf(CodeForStatus(resp.StatusCode), "", statusErr)
	}
	return respBody, nil
}

func decodeText(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		if prompt, ok := obj[protocol.FieldPrompt].(string); ok {
			return prompt
		}
	}
	return string(trimmed)
}
