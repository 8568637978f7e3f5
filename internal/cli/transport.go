// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/config"
	"github.com/jeranaias/whytree/internal/relay"
	"github.com/jeranaias/whytree/internal/util"
)

// transport is a ready streamer plus the relay token for one tree.
type transport struct {
	streamer     completion.Streamer
	sessionToken string
	remaining    int // relay quota left, -1 for direct
}

// openTransport connects to the provider named by the config. In relay mode
// it redeems one prompt of the daily quota for the tree about to grow.
func (a *app) openTransport(ctx context.Context) (*transport, error) {
	tc := a.cfg.Transport
	switch tc.Mode {
	case config.ModeRelay:
		client := relay.NewClient(tc.RelayURL).WithHTTPClient(&http.Client{Timeout: tc.Timeout()})
		fp, err := fingerprint()
		if err != nil {
			return nil, err
		}
		model := completion.ResolveModel(a.cfg.Generation.Model)
		ticket, err := client.UsePrompt(ctx, fp, model)
		if err != nil {
			return nil, fmt.Errorf("redeem relay prompt: %w", err)
		}
		a.logger.Info("relay prompt redeemed", "relay", tc.RelayURL, "model", ticket.Model, "remaining", ticket.Remaining)
		return &transport{
			streamer:     completion.NewRelayed(client.WebSocketURL()).WithLogger(a.logger),
			sessionToken: ticket.SessionToken,
			remaining:    ticket.Remaining,
		}, nil

	default:
		if tc.APIKey == "" {
			return nil, config.ValidationError{
				Field:   "transport.api_key",
				Message: "no API key; set WHYTREE_API_KEY or OPENAI_API_KEY, or use relay mode",
			}
		}
		d := completion.NewDirect(tc.APIKey).
			WithBaseURL(tc.BaseURL).
			WithLogger(a.logger)
		return &transport{streamer: d, remaining: -1}, nil
	}
}

// fingerprint returns this installation's stable relay identity, creating
// it on first use.
func fingerprint() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "fingerprint")
	if data, err := os.ReadFile(path); err == nil {
		if fp := strings.TrimSpace(string(data)); fp != "" {
			return fp, nil
		}
	}
	fp := uuid.NewString()
	if err := util.AtomicWriteFileWithDir(path, []byte(fp+"\n"), 0600, 0700); err != nil {
		return "", fmt.Errorf("save fingerprint: %w", err)
	}
	return fp, nil
}
