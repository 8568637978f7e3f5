// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved question trees to portable formats.
//
// # Supported Formats
//
//   - JSON: the raw node map, re-importable as a snapshot
//   - Markdown: an indented outline of questions and answers
//   - HTML: a collapsible page for viewing in browsers
//
// # Usage
//
//	exp, err := export.ForFormat("md", export.DefaultOptions())
//	path, err := export.ExportToFile(saved, exp, opts)
//
// The package-level JSON and Markdown functions render a bare snapshot
// without metadata.
package export
