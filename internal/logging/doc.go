// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the process-wide slog logger.
//
// Output goes to stderr as text by default, or as JSON when
// WHYTREE_LOG_FORMAT=json. When LogDir is set a JSON log file is written
// alongside it; the terminal UI sets Quiet so the file is the only sink and
// log lines never land on the screen.
//
//	logger, closer, err := logging.Setup(logging.FromEnv(logging.Config{}))
//	defer closer.Close()
//	logger.Info("expanding", "node", id)
package logging
