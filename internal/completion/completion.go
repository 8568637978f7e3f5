// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// =============================================================================
// STREAMER
// =============================================================================

// Streamer streams a completion for a single prompt.
type Streamer interface {
	Stream(ctx context.Context, prompt string, opts Options, onChunk func(string)) error
}

// StreamFunc adapts a function to the Streamer interface.
type StreamFunc func(ctx context.Context, prompt string, opts Options, onChunk func(string)) error

// Stream implements Streamer.
func (f StreamFunc) Stream(ctx context.Context, prompt string, opts Options, onChunk func(string)) error {
	return f(ctx, prompt, opts, onChunk)
}

// Options are the sampling parameters of one request.
type Options struct {
	// Model is the provider model id (e.g. "gpt-3.5-turbo").
	Model string

	Temperature Temperature

	// APIKey overrides the transport's key for direct requests.
	APIKey string

	// SessionToken identifies the caller to a relay for quota accounting.
	SessionToken string
}

// =============================================================================
// TEMPERATURE
// =============================================================================

// Temperature is a sampling temperature in [0, 1].
type Temperature float64

// DefaultTemperature is used for answers and questions alike.
const DefaultTemperature Temperature = 1

// NewTemperature validates v and returns it as a Temperature.
func NewTemperature(v float64) (Temperature, error) {
	t := Temperature(v)
	if err := t.Validate(); err != nil {
		return 0, err
	}
	return t, nil
}

// Validate returns ErrInvalidTemperature if t is outside [0, 1].
func (t Temperature) Validate() error {
	if math.IsNaN(float64(t)) || t < 0 || t > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, float64(t))
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidTemperature indicates a temperature outside [0, 1].
	ErrInvalidTemperature = errors.New("temperature must be between 0 and 1")

	// ErrMalformedFrame indicates a stream record that could not be decoded.
	ErrMalformedFrame = errors.New("malformed stream frame")

	// ErrNotConfigured indicates a direct request without an API key.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrProvider matches every *ProviderError.
	ErrProvider = errors.New("provider error")

	// ErrRateLimited indicates the provider or relay refused for quota.
	ErrRateLimited = errors.New("rate limited")
)

// ProviderError is an error reported by the model provider or relay.
type ProviderError struct {
	Code    string
	Message string
	Status  int // HTTP status, 0 for in-band errors
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("provider error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("provider error (HTTP %d): %s", e.Status, e.Message)
	case e.Code != "":
		return fmt.Sprintf("provider error [%s]: %s", e.Code, e.Message)
	default:
		return "provider error: " + e.Message
	}
}

// Is matches ErrProvider, and ErrRateLimited for HTTP 429.
func (e *ProviderError) Is(target error) bool {
	if target == ErrProvider {
		return true
	}
	return target == ErrRateLimited && e.Status == 429
}

// Retryable returns true for 5xx responses.
func (e *ProviderError) Retryable() bool {
	return e.Status >= 500 && e.Status < 600
}

// StreamError is an error that interrupted a stream after some content
// was delivered.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// PartialContent returns the text delivered before err, if err is a
// *StreamError.
func PartialContent(err error) string {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Partial
	}
	return ""
}
