// Package httpx provides the shared HTTP client for liveness checks and
// external data sources. The client honors the configured timeout, user
// agent, and optional proxy, and caps response bodies to keep misbehaving
// endpoints from exhausting memory.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/errors"
)

const (
	// maxBodyBytes caps plain response bodies.
	maxBodyBytes = 10 << 20
	// maxJSONBytes caps JSON response bodies.
	maxJSONBytes = 5 << 20
)

// Client wraps http.Client with osprey's settings applied.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// New builds a client from the given settings.
func New(settings config.Settings) (*Client, error) {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		MaxIdleConns:      16,
		IdleConnTimeout:   30 * time.Second,
		ForceAttemptHTTP2: true,
	}

	if settings.Proxy != "" {
		proxyURL, err := url.Parse(settings.Proxy)
		if err != nil {
			return nil, errors.WrapConfigError(errors.CodeConfiguration, "invalid proxy URL", err)
		}
		if settings.ProxyAuth != nil {
			proxyURL.User = url.UserPassword(settings.ProxyAuth.Username, settings.ProxyAuth.Password)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := settings.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: settings.ResolveUserAgent(),
	}, nil
}

// CheckURL reports whether the URL is reachable. Any HTTP response counts
// as reachable; the status code is deliberately not evaluated.
func (c *Client) CheckURL(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, errors.WrapProbeErrorWithTarget(errors.CodeNetwork, "invalid URL", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, errors.WrapProbeErrorWithTarget(errors.CodeNetwork, "request failed", rawURL, err)
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return true, nil
}

// Get fetches a URL and returns the body as a string, capped at 10MB.
func (c *Client) Get(ctx context.Context, rawURL string) (string, error) {
	body, err := c.fetch(ctx, rawURL, maxBodyBytes)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON fetches a URL and decodes the JSON body into out, capped at 5MB.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	body, err := c.fetch(ctx, rawURL, maxJSONBytes)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.WrapProbeErrorWithTarget(errors.CodeNetwork, "invalid JSON response", rawURL, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.WrapProbeErrorWithTarget(errors.CodeNetwork, "invalid URL", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapProbeErrorWithTarget(errors.CodeNetwork, "request failed", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errors.WrapProbeErrorWithTarget(errors.CodeNetwork, "failed to read response", rawURL, err)
	}
	if int64(len(body)) > limit {
		return nil, errors.NewProbeErrorWithTarget(errors.CodeNetwork,
			fmt.Sprintf("response exceeds %d byte limit", limit), rawURL)
	}
	return body, nil
}

// UserAgent returns the configured User-Agent string.
func (c *Client) UserAgent() string {
	return c.userAgent
}
