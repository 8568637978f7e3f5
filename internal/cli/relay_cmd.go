// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/whytree/internal/config"
	"github.com/jeranaias/whytree/internal/relay"
	"github.com/jeranaias/whytree/internal/storage"
)

// relayShutdownTimeout bounds the drain of open streams on exit.
const relayShutdownTimeout = 10 * time.Second

func newRelayCommand(a *app) *cobra.Command {
	var (
		addr  string
		quota int
		model string
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the quota relay server",
		Long: `Run a relay that holds the provider API key and hands out a daily
quota of trees per client. Clients point transport.relay_url at it.

The provider key is read from relay.provider_api_key or
WHYTREE_RELAY_PROVIDER_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := a.cfg.Relay
			flags := cmd.Flags()
			if flags.Changed("addr") {
				rc.Addr = addr
			}
			if flags.Changed("quota") {
				rc.DailyQuota = quota
			}
			if flags.Changed("model") {
				rc.ProviderModel = model
			}
			return a.runRelay(cmd.Context(), rc)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address")
	f.IntVar(&quota, "quota", 0, "trees per client per day")
	f.StringVar(&model, "model", "", "default provider model id")
	return cmd
}

func (a *app) runRelay(ctx context.Context, rc config.RelayConfig) error {
	if rc.ProviderAPIKey == "" {
		return config.ValidationError{Field: "relay.provider_api_key", Message: "required to run a relay"}
	}

	provider := relay.NewOpenAIProvider(rc.ProviderAPIKey, rc.ProviderBaseURL, &http.Client{}).WithLogger(a.logger)

	var opts []relay.Option
	if rc.ExamplesDir != "" {
		examples, err := storage.NewFileStore(config.ExpandPath(rc.ExamplesDir))
		if err != nil {
			return commandError("relay", "open examples", err)
		}
		opts = append(opts, relay.WithExamples(examples))
	}

	relay.Version = Version
	srv := relay.New(relay.Config{
		Addr:           rc.Addr,
		DefaultModel:   rc.ProviderModel,
		AllowedModels:  rc.AllowedModels,
		DailyQuota:     rc.DailyQuota,
		MaxTokens:      rc.MaxTokens,
		AllowedOrigins: rc.AllowedOrigins,
		Logger:         a.logger,
	}, provider, opts...)

	if w := a.watchRelayConfig(ctx, srv); w != nil {
		defer w.Close()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), relayShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return <-errCh
}

// watchRelayConfig applies daily quota edits to a running relay. Other
// relay settings need a restart. It returns nil when there is no config
// file to watch.
func (a *app) watchRelayConfig(ctx context.Context, srv *relay.Server) *config.Watcher {
	path, err := a.configFile()
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w, err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Warn("config reload failed, keeping current settings", "path", path, "error", err)
			return
		}
		lim := srv.Limiter()
		if q := cfg.Relay.DailyQuota; q != lim.Quota() {
			lim.SetQuota(q)
			a.logger.Info("daily quota updated", "quota", q)
		}
	})
	if err != nil {
		a.logger.Warn("config watch unavailable", "path", path, "error", err)
		return nil
	}
	return w
}
