// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for whytree.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - GenerationConfig: model, persona and pool sizing
//   - TransportConfig: direct API or relay
//   - StorageConfig: persistence backend
//   - RelayConfig: settings for `whytree relay`
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (WHYTREE_*)
//   - ~/.whytree/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Watch for edits while running:
//
//	stop, err := config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
