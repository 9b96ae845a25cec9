// ABOUTME: HTTP client for a remote pagemem server.
// ABOUTME: Mirrors the page store operations over the /api endpoints.
package client

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

	"github.com/2389-research/pagemem/internal/index"
	"github.com/2389-research/pagemem/internal/models"
)

// Client talks to the HTTP API served by `pagemem serve`.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures optional Client settings.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// New creates a client for the server at baseURL. A trailing "/api" is accepted.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/api")
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health is the server's health report.
type Health struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	ModelLoaded bool   `json:"model_loaded"`
}

// StoreRequest is the body of POST /api/store. An empty Title and a nil
// Timestamp let the server apply its defaults.
type StoreRequest struct {
	URL       string `json:"url"`
	Summary   string `json:"summary"`
	Title     string `json:"title,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// SimilarRequest is the body of POST /api/similar.
type SimilarRequest struct {
	Summary    string   `json:"summary"`
	CurrentURL string   `json:"currentUrl,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

type envelope struct {
	Success      bool                 `json:"success"`
	Error        string               `json:"error"`
	Message      string               `json:"message"`
	SimilarPages []models.Match       `json:"similarPages"`
	Stats        models.Stats         `json:"stats"`
	Webpages     []models.PageListing `json:"webpages"`
}

// Health fetches GET /api/health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Store posts a page summary.
func (c *Client) Store(ctx context.Context, req StoreRequest) error {
	var env envelope
	return c.do(ctx, "insert", http.MethodPost, "/api/store", req, &env)
}

// Similar returns pages similar to the request summary.
func (c *Client) Similar(ctx context.Context, req SimilarRequest) ([]models.Match, error) {
	var env envelope
	if err := c.do(ctx, "query", http.MethodPost, "/api/similar", req, &env); err != nil {
		return nil, err
	}
	if env.SimilarPages == nil {
		return []models.Match{}, nil
	}
	return env.SimilarPages, nil
}

// Stats fetches store statistics.
func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	var env envelope
	if err := c.do(ctx, "stats", http.MethodGet, "/api/stats", nil, &env); err != nil {
		return models.Stats{}, err
	}
	return env.Stats, nil
}

// Webpages lists stored pages, newest first.
func (c *Client) Webpages(ctx context.Context) ([]models.PageListing, error) {
	var env envelope
	if err := c.do(ctx, "list", http.MethodGet, "/api/webpages", nil, &env); err != nil {
		return nil, err
	}
	return env.Webpages, nil
}

// Clear removes every stored page.
func (c *Client) Clear(ctx context.Context) error {
	var env envelope
	return c.do(ctx, "clear", http.MethodPost, "/api/clear", struct{}{}, &env)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError rebuilds a store error from a failed response.
func statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := strings.TrimSpace(string(respBody))
	var env envelope
	if json.Unmarshal(respBody, &env) == nil && env.Error != "" {
		msg = env.Error
	}
	if msg == "" {
		msg = resp.Status
	}

	kind := index.ErrPersistence
	switch resp.StatusCode {
	case http.StatusBadRequest:
		kind = index.ErrValidation
	case http.StatusServiceUnavailable:
		kind = index.ErrUnavailable
	}
	return &index.Error{Kind: kind, Op: op, Err: fmt.Errorf("remote API returned %d: %s", resp.StatusCode, msg)}
}
