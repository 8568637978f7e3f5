// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is the OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultMaxRetries is the number of connection attempts per stream.
	DefaultMaxRetries = 3

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 16 * 1024
)

// sharedStreamingClient has no timeout; streams are bounded by their context.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// streamChunk is one decoded "data:" record.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

func (c *streamChunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

type apiError struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code"`
}

func (e *apiError) code() string {
	code := strings.Trim(string(e.Code), `"`)
	if code == "null" {
		code = ""
	}
	if code == "" {
		code = e.Type
	}
	return code
}

// =============================================================================
// DIRECT CLIENT
// =============================================================================

// Direct streams completions straight from an OpenAI-compatible endpoint.
type Direct struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewDirect creates a direct client using apiKey unless a request carries
// its own.
func NewDirect(apiKey string) *Direct {
	return &Direct{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: sharedStreamingClient,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
}

// WithBaseURL sets the API root (without /chat/completions).
func (d *Direct) WithBaseURL(url string) *Direct {
	d.baseURL = strings.TrimRight(url, "/")
	return d
}

// WithHTTPClient replaces the HTTP client.
func (d *Direct) WithHTTPClient(c *http.Client) *Direct {
	d.httpClient = c
	return d
}

// WithMaxRetries sets the number of connection attempts.
func (d *Direct) WithMaxRetries(n int) *Direct {
	if n < 1 {
		n = 1
	}
	d.maxRetries = n
	return d
}

// WithLogger sets the logger.
func (d *Direct) WithLogger(l *slog.Logger) *Direct {
	d.logger = l
	return d
}

// Stream implements Streamer. Connection errors and 5xx responses are
// retried with exponential backoff until the first chunk arrives; after
// that any failure is returned as a *StreamError.
func (d *Direct) Stream(ctx context.Context, prompt string, opts Options, onChunk func(string)) error {
	if err := opts.Temperature.Validate(); err != nil {
		return err
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = d.apiKey
	}
	if apiKey == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model:       ResolveModel(opts.Model),
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: float64(opts.Temperature),
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var accumulated strings.Builder
	deliver := func(s string) {
		accumulated.WriteString(s)
		onChunk(s)
	}

	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt)
			d.logger.Debug("retrying completion stream", "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := d.streamOnce(ctx, apiKey, body, deliver)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if accumulated.Len() > 0 {
			return &StreamError{Partial: accumulated.String(), Err: err}
		}
		if !isStreamRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (d *Direct) streamOnce(ctx context.Context, apiKey string, body []byte, deliver func(string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return handleErrorResponse(resp.StatusCode, errBody)
	}
	return processStream(ctx, resp.Body, deliver)
}

// processStream reads "data:" records until [DONE] or EOF.
func processStream(ctx context.Context, body io.Reader, deliver func(string)) error {
	reader := NewSSEReader(body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if string(bytes.TrimSpace(data)) == doneSentinel {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedFrame, truncate(string(data), 120))
		}
		if chunk.Error != nil {
			return &ProviderError{Code: chunk.Error.code(), Message: chunk.Error.Message}
		}
		if content := chunk.content(); content != "" {
			deliver(content)
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// handleErrorResponse converts a non-200 response to a *ProviderError.
func handleErrorResponse(status int, body []byte) error {
	var payload struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil && payload.Error.Message != "" {
		return &ProviderError{Code: payload.Error.code(), Message: payload.Error.Message, Status: status}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ProviderError{Message: truncate(msg, 200), Status: status}
}

// isStreamRetryable reports whether a failure before the first chunk
// should be retried.
func isStreamRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrMalformedFrame) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	// Network errors.
	return true
}

// calculateBackoff returns 500ms, 1s, 2s, ... capped at retryMaxDelay.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
