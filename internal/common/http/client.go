// Package http is the JSON client used for every outbound call: the
// matching service and the sibling services behind the gateway.
package http

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

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for authenticated calls. Clear is
// invoked when a server rejects that token on a ClearOn401 request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// AuthMode controls whether a request carries a bearer token.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthOptional
	AuthRequired
)

type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   interface{}
	Auth   AuthMode
	// Token overrides the token source when set.
	Token   string
	Headers map[string]string
	// ClearOn401 drops the session when the server rejects the token this
	// request carried. Only gateway calls set it.
	ClearOn401 bool
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	baseURL    string
	service    string
	httpClient *http.Client
	tokens     TokenSource
	logger     logger.Logger
}

type Option func(*Client)

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// NewClient returns a client for service rooted at baseURL.
func NewClient(service, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		service:    service,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs req and maps failures onto StandardErrors: no response is a
// NetworkError, a rejected token on a ClearOn401 request an
// AuthenticationError and any other non-2xx a ServiceError carrying the
// server's explanation.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	token, err := c.resolveToken(ctx, req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("encode %s request: %w", c.service, err))
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("build %s request: %w", c.service, err))
	}
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	log := c.logger.WithFields(map[string]interface{}{
		"service":   c.service,
		"method":    req.Method,
		"path":      req.Path,
		"requestId": requestID,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn("request failed without response", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewNetworkError(c.service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(c.service, fmt.Errorf("read response: %w", err))
	}

	log.Debug("request completed", map[string]interface{}{
		"status":     resp.StatusCode,
		"durationMs": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode == http.StatusUnauthorized && req.ClearOn401 && token != "" {
		if c.tokens != nil {
			if err := c.tokens.Clear(ctx); err != nil {
				log.Warn("failed to clear session after 401", map[string]interface{}{"error": err.Error()})
			}
		}
		return nil, apperrors.NewAuthenticationError("Unauthorized")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewServiceError(c.service, resp.StatusCode, DetailMessage(raw, resp.StatusCode, c.service))
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// GetJSON sends a GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, auth AuthMode, out interface{}) error {
	resp, err := c.Send(ctx, Request{Method: http.MethodGet, Path: path, Auth: auth, ClearOn401: auth != AuthNone})
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// PostJSON sends body as JSON and decodes the response into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, auth AuthMode, body, out interface{}) error {
	resp, err := c.Send(ctx, Request{Method: http.MethodPost, Path: path, Auth: auth, Body: body, ClearOn401: auth != AuthNone})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(resp, out)
}

func (c *Client) decode(resp *Response, out interface{}) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apperrors.NewServiceError(c.service, resp.StatusCode, GenericMessage(c.service, resp.StatusCode))
	}
	return nil
}

func (c *Client) resolveToken(ctx context.Context, req Request) (string, error) {
	if req.Auth == AuthNone {
		return "", nil
	}
	token := req.Token
	if token == "" && c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil && req.Auth == AuthRequired {
			return "", apperrors.NewAuthenticationError(fmt.Sprintf("session lookup failed: %v", err))
		}
		token = t
	}
	if token == "" && req.Auth == AuthRequired {
		return "", apperrors.NewAuthenticationError("no session token")
	}
	return token, nil
}

// DetailMessage extracts the server's explanation from an error body:
// detail, then message, JSON-encoding non-string values. Anything else
// yields the generic message.
func DetailMessage(body []byte, status int, service string) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "message"} {
			v, ok := payload[key]
			if !ok || v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				if s != "" {
					return s
				}
				continue
			}
			if encoded, err := json.Marshal(v); err == nil {
				return string(encoded)
			}
		}
	}
	return GenericMessage(service, status)
}

func GenericMessage(service string, status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("%s service request failed (%d)", service, status)
	}
	return fmt.Sprintf("%s service request failed (%d %s)", service, status, text)
}
