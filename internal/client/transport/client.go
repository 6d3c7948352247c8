// Package transport is the single choke point for calls to the Kongtze
// backend. It attaches the bearer token, encodes JSON or multipart bodies,
// decodes JSON responses and normalizes failures into typed errors.
//
// Every call is exactly one attempt: there is no caching and no retrying.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client issues requests against one backend base URL. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	tls     *tls.Config
	metrics *Metrics
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every call. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics instruments the client's round tripper.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTLSConfig sets the TLS configuration used for HTTPS backends.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) { c.tls = cfg }
}

// New returns a Client for baseURL, e.g. "http://localhost:8000/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := http.Client{}
	if c.http != nil {
		hc = *c.http
	}
	rt := hc.Transport
	if c.tls != nil {
		base, ok := rt.(*http.Transport)
		if !ok || base == nil {
			base = http.DefaultTransport.(*http.Transport)
		}
		t := base.Clone()
		t.TLSClientConfig = c.tls
		rt = t
	}
	if c.metrics != nil {
		if rt == nil {
			rt = http.DefaultTransport
		}
		rt = c.metrics.instrument(rt)
	}
	hc.Transport = rt
	c.http = &hc
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Get issues GET path and decodes a JSON response into out. out may be nil.
func (c *Client) Get(ctx context.Context, path, token string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", token, out)
}

// Post sends body as JSON. A nil body sends no body at all.
func (c *Client) Post(ctx context.Context, path string, body any, token string, out any) error {
	return c.send(ctx, http.MethodPost, path, body, token, out)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body any, token string, out any) error {
	return c.send(ctx, http.MethodPut, path, body, token, out)
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path, token string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", token, out)
}

// Upload posts form as multipart/form-data. The content type carries the
// multipart boundary and is never JSON.
func (c *Client) Upload(ctx context.Context, path string, form *FormData, token string, out any) error {
	body, contentType, err := form.encode()
	if err != nil {
		return fmt.Errorf("encode %s form: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, body, contentType, token, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any, token string, out any) error {
	if body == nil {
		return c.do(ctx, method, path, nil, "", token, out)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s %s body: %w", method, path, err)
	}
	return c.do(ctx, method, path, bytes.NewReader(b), "application/json", token, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType, token string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPError(resp.StatusCode, data)
	}
	// 204 and non-JSON successes carry no result; a JSON body must decode
	if out == nil || resp.StatusCode == http.StatusNoContent || !isJSON(resp.Header.Get("Content-Type")) {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &MalformedResponseError{Status: resp.StatusCode, Err: err}
	}
	return nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
