// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/storage"
)

// ============================================================================
// CLIENT
// ============================================================================

// Client calls a relay's HTTP endpoints. Completions go through
// completion.Relayed on the socket returned by WebSocketURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for a relay base URL. ws:// and wss:// URLs
// are accepted and mapped to http:// and https://; a trailing /ws is
// dropped.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    httpBase(baseURL),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient sets the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WebSocketURL returns the relay socket URL.
func (c *Client) WebSocketURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	default:
		return c.baseURL + "/ws"
	}
}

func httpBase(raw string) string {
	base := strings.TrimRight(raw, "/")
	base = strings.TrimSuffix(base, "/ws")
	switch {
	case strings.HasPrefix(base, "wss://"):
		base = "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		base = "http://" + strings.TrimPrefix(base, "ws://")
	}
	return base
}

// Remaining returns the quota left for fingerprint and model.
func (c *Client) Remaining(ctx context.Context, fingerprint, model string) (*QuotaResponse, error) {
	var out QuotaResponse
	err := c.do(ctx, http.MethodGet, "/api/remaining", url.Values{"fp": {fingerprint}, "model": {model}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UsePrompt redeems one prompt and returns the session token for the
// completions of one tree.
func (c *Client) UsePrompt(ctx context.Context, fingerprint, model string) (*TicketResponse, error) {
	var out TicketResponse
	err := c.do(ctx, http.MethodPost, "/api/use-prompt", url.Values{"fp": {fingerprint}, "model": {model}}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Examples lists the relay's example trees.
func (c *Client) Examples(ctx context.Context) ([]ExampleSummary, error) {
	var out []ExampleSummary
	if err := c.do(ctx, http.MethodGet, "/api/examples", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Example fetches one example tree.
func (c *Client) Example(ctx context.Context, id string) (*storage.SavedTree, error) {
	var out storage.SavedTree
	if err := c.do(ctx, http.MethodGet, "/api/examples/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends a request and decodes a JSON response. Non-2xx responses become
// *completion.ProviderError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		pe := &completion.ProviderError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var re completion.RelayError
		if json.Unmarshal(body, &re) == nil && re.Error != "" {
			pe.Code = re.Code
			pe.Message = re.Error
		}
		return pe
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode relay response: %w", err)
	}
	return nil
}
