// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/storage"
)

// JSON renders a snapshot as indented JSON keyed by node id.
func JSON(snap qatree.Snapshot) ([]byte, error) {
	if _, ok := snap.Root(); !ok {
		return nil, ErrEmptyTree
	}
	return json.MarshalIndent(snap, "", "  ")
}

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports the node map only, so the output loads back as a
// snapshot. Metadata options are ignored.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export implements Exporter.
func (e *JSONExporter) Export(saved *storage.SavedTree) ([]byte, error) {
	if saved == nil {
		return nil, ErrEmptyTree
	}
	return JSON(saved.Tree)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
