// Package api is the HTTP client for the automation backend.
package api

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

	"github.com/mark3labs/automatr/internal/logger"
)

// TokenSource supplies the bearer credential. An empty token means the user
// is not signed in.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource backed by a fixed string.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token() string { return string(t) }

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// HasCredential reports whether a bearer token is available.
func (c *Client) HasCredential() bool { return c.tokens.Token() != "" }

// ResolveURL resolves a possibly relative reference against the API root.
func (c *Client) ResolveURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}

// ListServices fetches the service catalog. When a stored credential is
// rejected the list is fetched again anonymously, since the catalog is public.
func (c *Client) ListServices(ctx context.Context) ([]ServiceSummary, error) {
	var out []ServiceSummary
	err := c.do(ctx, http.MethodGet, "/services/", nil, &out, true)
	if errors.Is(err, ErrUnauthorized) && c.HasCredential() {
		logger.Warn("Credential rejected by service list, retrying anonymously")
		out = nil
		err = c.do(ctx, http.MethodGet, "/services/", nil, &out, false)
	}
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	return out, nil
}

// GetService fetches the triggers and reactions of one service.
func (c *Client) GetService(ctx context.Context, remoteID string) (*ServiceDetail, error) {
	var out ServiceDetail
	if err := c.do(ctx, http.MethodGet, "/services/"+url.PathEscape(remoteID)+"/", nil, &out, true); err != nil {
		return nil, fmt.Errorf("fetching service %s: %w", remoteID, err)
	}
	return &out, nil
}

// FetchOptions loads the {id, name} pairs of a remote select field.
func (c *Client) FetchOptions(ctx context.Context, ref string) ([]Option, error) {
	var out Options
	if err := c.do(ctx, http.MethodGet, c.ResolveURL(ref), nil, &out, true); err != nil {
		return nil, fmt.Errorf("fetching options %s: %w", ref, err)
	}
	return out, nil
}

// CreateArea persists one trigger→reaction automation.
func (c *Client) CreateArea(ctx context.Context, req CreateAreaRequest) (*Area, error) {
	var out Area
	if err := c.do(ctx, http.MethodPost, "/areas/", req, &out, true); err != nil {
		return nil, fmt.Errorf("creating area: %w", err)
	}
	return &out, nil
}

// ConnectURL asks a backend connect endpoint for a provider authorize URL.
// next is the deep link the provider callback returns the user to.
func (c *Client) ConnectURL(ctx context.Context, path, next string) (string, error) {
	target := c.ResolveURL(path)
	if next != "" {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("parsing connect path: %w", err)
		}
		q := u.Query()
		q.Set("next", next)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var out connectResponse
	if err := c.do(ctx, http.MethodGet, target, nil, &out, true); err != nil {
		return "", fmt.Errorf("requesting authorize link: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("requesting authorize link: %w: empty url", ErrNetwork)
	}
	return out.URL, nil
}

// do performs one JSON request. target is either a path below the API root
// or an absolute URL.
func (c *Client) do(ctx context.Context, method, target string, body, out any, withAuth bool) error {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + target
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); withAuth && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger.Debug("%s %s", method, target)
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(method+" "+target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError("reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Detail: errorDetail(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrNetwork, err)
	}
	return nil
}

// errorDetail extracts the backend's "detail" or "error" message.
func errorDetail(data []byte) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Detail != "" {
		return body.Detail
	}
	return body.Error
}
