// Package client implements the request layer: HTTP verbs with transparent
// bearer-token attachment, a single retry after token refresh on 401, offline
// queueing of mutations, and error normalization into apierror.Error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/localspot/localspot-go/apierror"
	"github.com/localspot/localspot-go/connectivity"
	"github.com/rs/zerolog"
)

// TokenSource supplies the bearer credential and coordinates token refresh.
// Implemented by session.Manager: Refresh coalesces concurrent callers onto a
// single in-flight refresh and tears the session down on failure.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
}

// QueueSink accepts mutations that could not reach the network.
// Implemented by offline.Queue.
type QueueSink interface {
	Enqueue(ctx context.Context, method, endpoint string, body []byte) error
}

// Client performs API requests against a single base URL with a fixed
// request timeout.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	tokens  TokenSource
	queue   QueueSink
	monitor *connectivity.Monitor
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithHTTPClient replaces the underlying transport (primarily for testing).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithOfflineQueue routes mutations that fail while the monitor reports
// offline into queue for later replay.
func WithOfflineQueue(queue QueueSink, monitor *connectivity.Monitor) Option {
	return func(c *Client) {
		c.queue = queue
		c.monitor = monitor
	}
}

// New creates a Client for baseURL. Every request carries the given timeout;
// a timeout surfaces as a status-0 network error, never as a 401.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource wires the session manager in after construction. The client
// and the session reference each other, so one side has to bind late.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// requestConfig is the per-call configuration.
type requestConfig struct {
	headers        map[string]string
	contentType    string
	noAuthRetry    bool
	noOfflineQueue bool
}

// RequestOption adjusts a single call.
type RequestOption func(*requestConfig)

// WithHeader sets a request header for this call.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		if rc.headers == nil {
			rc.headers = make(map[string]string)
		}
		rc.headers[key] = value
	}
}

// WithContentType overrides the Content-Type for this call.
func WithContentType(contentType string) RequestOption {
	return func(rc *requestConfig) { rc.contentType = contentType }
}

// WithoutAuthRetry disables the 401 refresh-and-retry path. Used by the auth
// endpoints themselves: a 401 from /auth/refresh must never trigger another
// refresh.
func WithoutAuthRetry() RequestOption {
	return func(rc *requestConfig) { rc.noAuthRetry = true }
}

// Get performs a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post performs a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out, opts...)
}

// Put performs a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out, opts...)
}

// Delete performs a DELETE and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do dispatches a pre-encoded request. This is the replay path used by the
// offline replayer; replayed requests go through the same auth and
// normalization pipeline as fresh ones, but never back into the offline
// queue. The replayer owns re-queueing of failed replays.
func (c *Client) Do(ctx context.Context, method, endpoint string, body []byte) error {
	cfg := requestConfig{noOfflineQueue: true}
	if len(body) > 0 {
		cfg.contentType = "application/json"
	}
	return c.doBytes(ctx, method, endpoint, body, nil, cfg)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var cfg requestConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		if cfg.contentType == "" {
			cfg.contentType = "application/json"
		}
	}
	return c.doBytes(ctx, method, path, payload, out, cfg)
}

// File is one part of a multipart upload.
type File struct {
	Field   string
	Name    string
	Content []byte
}

// PostMultipart performs a multipart POST (review submissions with photos).
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []File, out any, opts ...RequestOption) error {
	var cfg requestConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write multipart field %s: %w", key, err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return fmt.Errorf("create multipart file %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return fmt.Errorf("write multipart file %s: %w", f.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	cfg.contentType = writer.FormDataContentType()
	return c.doBytes(ctx, http.MethodPost, path, buf.Bytes(), out, cfg)
}

// doBytes runs the request pipeline: send, intercept 401 once, normalize.
func (c *Client) doBytes(ctx context.Context, method, path string, payload []byte, out any, cfg requestConfig) error {
	status, raw, err := c.send(ctx, method, path, payload, cfg)
	if err != nil {
		return c.transportError(ctx, method, path, payload, err, cfg)
	}

	// A 401 on a call that carried no bearer token is not recoverable by a
	// refresh; it passes through as a plain error.
	if status == http.StatusUnauthorized && !cfg.noAuthRetry && c.tokens != nil && c.tokens.AccessToken() != "" {
		// Retried at most once; the second response is surfaced as-is.
		token, refreshErr := c.tokens.Refresh(ctx)
		if refreshErr != nil || token == "" {
			c.log.Warn().Err(refreshErr).Str("path", path).Msg("token refresh failed, surfacing auth error")
			return apierror.AuthFailure()
		}
		status, raw, err = c.send(ctx, method, path, payload, cfg)
		if err != nil {
			return apierror.FromTransport(err)
		}
	}

	if status >= 200 && status < 300 {
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode response from %s %s: %w", method, path, err)
			}
		}
		return nil
	}
	return apierror.FromResponse(status, raw)
}

// send performs one HTTP round trip, attaching the bearer token unless the
// caller already set an Authorization header.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, cfg requestConfig) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}

	if cfg.contentType != "" {
		req.Header.Set("Content-Type", cfg.contentType)
	}
	for key, value := range cfg.headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Authorization") == "" && c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

// transportError normalizes a failure that never produced a response. While
// offline, mutations are captured into the pending queue before the error is
// returned; the caller still sees the status-0 error so unsynced state is
// never misreported as success.
func (c *Client) transportError(ctx context.Context, method, path string, payload []byte, err error, cfg requestConfig) error {
	apiErr := apierror.FromTransport(err)
	if cfg.noOfflineQueue || method == http.MethodGet || method == http.MethodHead {
		return apiErr
	}
	if c.queue == nil || c.monitor == nil || c.monitor.Online() {
		return apiErr
	}
	if qErr := c.queue.Enqueue(ctx, method, path, payload); qErr != nil {
		c.log.Error().Err(qErr).Str("path", path).Msg("failed to queue offline mutation")
		return apiErr
	}
	apiErr.Details = map[string]any{"queued": true}
	return apiErr
}
