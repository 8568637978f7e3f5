// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// =============================================================================
// RELAY WIRE PROTOCOL
// =============================================================================

// RelayRequest is the first message a client sends on a relay socket.
type RelayRequest struct {
	Prompt       string  `json:"prompt"`
	Temperature  float64 `json:"temperature"`
	Model        string  `json:"model,omitempty"`
	SessionToken string  `json:"session_token,omitempty"`
}

// RelayError is the in-band error message sent by a relay.
type RelayError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

const (
	// RelayDone is the text message that ends a relayed stream.
	RelayDone = doneSentinel

	// LegacyRelayError is the plain-text error some relays send.
	LegacyRelayError = "An error occurred."

	// RelayCodeQuota is the RelayError code for an exhausted daily quota.
	RelayCodeQuota = "quota_exceeded"
)

// ParseRelayError decodes msg as a RelayError. It returns nil if msg is an
// ordinary text chunk.
func ParseRelayError(msg []byte) *ProviderError {
	if string(msg) == LegacyRelayError {
		return &ProviderError{Message: LegacyRelayError}
	}
	trimmed := strings.TrimSpace(string(msg))
	if !strings.HasPrefix(trimmed, `{"error"`) {
		return nil
	}
	var re RelayError
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&re); err != nil || re.Error == "" {
		return nil
	}
	pe := &ProviderError{Code: re.Code, Message: re.Error}
	if re.Code == RelayCodeQuota {
		pe.Status = http.StatusTooManyRequests
	}
	return pe
}

// =============================================================================
// RELAYED CLIENT
// =============================================================================

// Relayed streams completions through a whytree relay over WebSocket.
type Relayed struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewRelayed creates a relay client for a ws:// or wss:// URL.
func NewRelayed(url string) *Relayed {
	return &Relayed{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		logger: slog.Default(),
	}
}

// WithLogger sets the logger.
func (r *Relayed) WithLogger(l *slog.Logger) *Relayed {
	r.logger = l
	return r
}

// Stream implements Streamer.
func (r *Relayed) Stream(ctx context.Context, prompt string, opts Options, onChunk func(string)) error {
	if err := opts.Temperature.Validate(); err != nil {
		return err
	}

	conn, resp, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return &ProviderError{Message: "relay refused connection", Status: resp.StatusCode}
		}
		return fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	// Closing the socket unblocks ReadMessage when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	req := RelayRequest{
		Prompt:       prompt,
		Temperature:  float64(opts.Temperature),
		Model:        ResolveModel(opts.Model),
		SessionToken: opts.SessionToken,
	}
	if err := conn.WriteJSON(req); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("send prompt: %w", err)
	}

	var accumulated strings.Builder
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = io.ErrUnexpectedEOF
			}
			return &StreamError{Partial: accumulated.String(), Err: fmt.Errorf("relay closed before %s: %w", RelayDone, err)}
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if string(data) == RelayDone {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		}
		if pe := ParseRelayError(data); pe != nil {
			if accumulated.Len() > 0 {
				return &StreamError{Partial: accumulated.String(), Err: pe}
			}
			return pe
		}

		chunk := string(data)
		accumulated.WriteString(chunk)
		onChunk(chunk)
	}
}

// IsRelayClosed reports whether err came from the relay hanging up early.
func IsRelayClosed(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF)
}
