// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/storage"
)

// Markdown renders a snapshot as an outline: the seed question as a heading,
// its answer as a paragraph, then every descendant as a nested bullet with
// its answer indented beneath it. Nodes with no answer yet render as the
// bare question.
func Markdown(snap qatree.Snapshot) string {
	root, ok := snap.Root()
	if !ok {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(oneLine(root.Question))))
	if body := answerText(root); body != "" {
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}

	preorder(snap, func(id string, n qatree.Node, depth int) {
		if id == qatree.RootID {
			return
		}
		indent := strings.Repeat("  ", depth-1)
		sb.WriteString(fmt.Sprintf("%s- **%s**\n", indent, escapeMarkdown(oneLine(n.Question))))
		if body := answerText(n); body != "" {
			for _, line := range strings.Split(body, "\n") {
				if strings.TrimSpace(line) == "" {
					sb.WriteString("\n")
					continue
				}
				sb.WriteString(indent + "  " + line + "\n")
			}
		}
	})

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// preorder visits nodes depth first from the root, children in generation
// order. Missing and already visited ids are skipped.
func preorder(snap qatree.Snapshot, fn func(id string, n qatree.Node, depth int)) {
	seen := make(map[string]bool, len(snap))
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		if seen[id] {
			return
		}
		n, ok := snap[id]
		if !ok {
			return
		}
		seen[id] = true
		fn(id, n, depth)
		for _, child := range n.ChildIDs {
			visit(child, depth+1)
		}
	}
	visit(qatree.RootID, 0)
}

func answerText(n qatree.Node) string {
	if n.Failed {
		msg := "generation failed"
		if n.Error != "" {
			msg += ": " + oneLine(n.Error)
		}
		return "_(" + msg + ")_"
	}
	return strings.TrimSpace(n.Answer)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports trees to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a tree to Markdown, with YAML frontmatter when metadata
// is enabled.
func (e *MarkdownExporter) Export(saved *storage.SavedTree) ([]byte, error) {
	if saved == nil {
		return nil, ErrEmptyTree
	}
	if _, ok := saved.Tree.Root(); !ok {
		return nil, ErrEmptyTree
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(oneLine(saved.SeedQuery))))
		if !saved.CreatedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("date: %s\n", saved.CreatedAt.Format(time.RFC3339)))
		}
		if !saved.UpdatedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("updated: %s\n", saved.UpdatedAt.Format(time.RFC3339)))
		}
		sb.WriteString(fmt.Sprintf("nodes: %d\n", saved.NodeCount()))
		sb.WriteString(fmt.Sprintf("exported: %s\n", e.options.now().Format(time.RFC3339)))
		sb.WriteString("generator: whytree\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(Markdown(saved.Tree))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break bullets and headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a scalar when it contains YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
