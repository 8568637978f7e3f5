// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variables read by FromEnv.
const (
	EnvFormat = "WHYTREE_LOG_FORMAT"
	EnvLevel  = "WHYTREE_LOG_LEVEL"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config configures Setup. The zero value logs Info and above to stderr as
// text.
type Config struct {
	Level slog.Level

	// JSON switches the stderr handler to JSON.
	JSON bool

	// Quiet disables the stderr handler.
	Quiet bool

	// LogDir enables a JSON log file named whytree_<date>.log.
	LogDir string

	// Stderr replaces os.Stderr. Used by tests.
	Stderr io.Writer

	// Now dates the log file name. Defaults to time.Now.
	Now func() time.Time
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// FromEnv applies WHYTREE_LOG_FORMAT and WHYTREE_LOG_LEVEL on top of cfg.
// An unparseable level is ignored.
func FromEnv(cfg Config) Config {
	if strings.EqualFold(os.Getenv(EnvFormat), "json") {
		cfg.JSON = true
	}
	if v := os.Getenv(EnvLevel); v != "" {
		if lvl, err := ParseLevel(v); err == nil {
			cfg.Level = lvl
		}
	}
	return cfg
}

// =============================================================================
// SETUP
// =============================================================================

// Setup builds a logger from cfg, installs it as slog.Default and returns a
// closer for the log file. The closer is never nil.
func Setup(cfg Config) (*slog.Logger, io.Closer, error) {
	logger, closer, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

// New builds a logger from cfg without touching slog.Default.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handlers []slog.Handler

	if !cfg.Quiet {
		w := cfg.Stderr
		if w == nil {
			w = os.Stderr
		}
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		}
	}

	var closer io.Closer = nopCloser{}
	if cfg.LogDir != "" {
		f, err := openLogFile(cfg)
		if err != nil {
			return nil, nil, err
		}
		closer = f
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	return slog.New(handler), closer, nil
}

// FilePath returns the log file Setup would open for cfg.
func FilePath(cfg Config) string {
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	return filepath.Join(expandPath(cfg.LogDir), fmt.Sprintf("whytree_%s.log", now().Format("2006-01-02")))
}

func openLogFile(cfg Config) (*os.File, error) {
	path := FilePath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func expandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// =============================================================================
// MULTI HANDLER
// =============================================================================

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}
