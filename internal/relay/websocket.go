// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/whytree/internal/completion"
)

// ============================================================================
// WEBSOCKET RELAY
// ============================================================================

const (
	maxMessageBytes = 64 * 1024
	writeWait       = 10 * time.Second
)

// rejection is a request refused before any upstream call.
type rejection struct {
	code    string
	message string
}

func (r *rejection) Error() string { return r.message }

// handleWebSocket serves one completion per socket: read the request,
// stream deltas as text messages, finish with [DONE] or an in-band error.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	start := time.Now()
	result := resultOK
	defer func() {
		s.metrics.streams.WithLabelValues(result).Inc()
		s.metrics.streamDuration.Observe(time.Since(start).Seconds())
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.RequestTimeout))
	var req completion.RelayRequest
	if err := conn.ReadJSON(&req); err != nil {
		result = resultRejected
		s.sendError(conn, codeBadRequest, "invalid request")
		return
	}
	conn.SetReadDeadline(time.Time{})

	model, rej := s.admit(req)
	if rej != nil {
		result = resultRejected
		s.logger.Info("relay request rejected", "code", rej.code, "client", GetClientIP(r))
		s.sendError(conn, rej.code, rej.message)
		return
	}
	if s.provider == nil {
		result = resultError
		s.sendError(conn, codeNotConfigured, "relay has no provider configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StreamTimeout)
	defer cancel()

	// The reader goroutine notices client hangups and cancels the stream.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.metrics.active.Inc()
	defer s.metrics.active.Dec()

	chunks := 0
	err = s.provider.StreamChat(ctx, ProviderRequest{
		Prompt:      req.Prompt,
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}, func(delta string) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(delta)); err != nil {
			return err
		}
		chunks++
		s.metrics.chunks.Inc()
		return nil
	})

	switch {
	case err == nil:
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if werr := conn.WriteMessage(websocket.TextMessage, []byte(completion.RelayDone)); werr != nil {
			result = resultAborted
			return
		}
		s.closeNormal(conn)
	case ctx.Err() != nil && r.Context().Err() == nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		// Client went away
		result = resultAborted
		s.logger.Debug("client disconnected mid-stream", "chunks", chunks)
	default:
		result = resultError
		s.logger.Warn("provider stream failed", "error", err, "model", model, "chunks", chunks)
		s.sendError(conn, codeProvider, "upstream provider failed")
	}
}

// admit validates a request and its session token. It returns the provider
// model to use.
func (s *Server) admit(req completion.RelayRequest) (string, *rejection) {
	if req.Prompt == "" {
		return "", &rejection{codeBadRequest, "empty prompt"}
	}
	if len(req.Prompt) > s.cfg.MaxPromptBytes {
		return "", &rejection{codeBadRequest, "prompt too large"}
	}
	if err := completion.Temperature(req.Temperature).Validate(); err != nil {
		return "", &rejection{codeInvalidTemp, err.Error()}
	}

	t, ok := s.tokens.lookup(req.SessionToken)
	if !ok {
		return "", &rejection{codeInvalidToken, "missing or expired session token"}
	}

	model := t.Model
	if req.Model != "" {
		resolved, allowed := s.resolveModel(req.Model)
		if !allowed || resolved != t.Model {
			return "", &rejection{codeUnknownModel, "model does not match session"}
		}
		model = resolved
	}
	return model, nil
}

func (s *Server) sendError(conn *websocket.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(completion.RelayError{Error: message, Code: code}); err != nil {
		s.logger.Debug("failed to send relay error", "error", err)
		return
	}
	s.closeNormal(conn)
}

func (s *Server) closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
