// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/jeranaias/whytree/internal/qatree"
	"github.com/jeranaias/whytree/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports trees as a standalone page of nested, collapsible
// question blocks with embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a tree to HTML.
func (e *HTMLExporter) Export(saved *storage.SavedTree) ([]byte, error) {
	if saved == nil {
		return nil, ErrEmptyTree
	}
	if _, ok := saved.Tree.Root(); !ok {
		return nil, ErrEmptyTree
	}

	title := html.EscapeString(oneLine(saved.SeedQuery))
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", title))
	sb.WriteString("    <meta name=\"generator\" content=\"whytree\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(saved))
	}

	sb.WriteString("        <main class=\"tree\">\n")
	e.renderNode(&sb, saved.Tree, qatree.RootID, map[string]bool{}, 3)
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>whytree</strong> on %s</p>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString(script)
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(saved *storage.SavedTree) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(oneLine(saved.SeedQuery))))
	sb.WriteString("            <div class=\"metadata\">\n")
	if !saved.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(saved.CreatedAt)))
	}
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Nodes:</strong> %d</span>\n", saved.NodeCount()))
	sb.WriteString("                <button class=\"theme-toggle\" onclick=\"toggleTheme()\" title=\"Toggle theme\">[Theme]</button>\n")
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

// renderNode writes id and its subtree as nested <details> blocks.
func (e *HTMLExporter) renderNode(sb *strings.Builder, snap qatree.Snapshot, id string, seen map[string]bool, level int) {
	n, ok := snap[id]
	if !ok || seen[id] {
		return
	}
	seen[id] = true

	pad := strings.Repeat("    ", level)
	class := "node"
	if n.Failed {
		class += " failed"
	}
	sb.WriteString(fmt.Sprintf("%s<details class=\"%s\" open>\n", pad, class))
	sb.WriteString(fmt.Sprintf("%s    <summary class=\"question\">%s</summary>\n", pad, html.EscapeString(oneLine(n.Question))))
	if n.Failed {
		msg := "Generation failed"
		if n.Error != "" {
			msg += ": " + n.Error
		}
		sb.WriteString(fmt.Sprintf("%s    <div class=\"answer error\">%s</div>\n", pad, html.EscapeString(msg)))
	} else if answer := strings.TrimSpace(n.Answer); answer != "" {
		sb.WriteString(fmt.Sprintf("%s    <div class=\"answer\">%s</div>\n", pad, formatAnswer(answer)))
	}
	if len(n.ChildIDs) > 0 {
		sb.WriteString(pad + "    <div class=\"children\">\n")
		for _, child := range n.ChildIDs {
			e.renderNode(sb, snap, child, seen, level+2)
		}
		sb.WriteString(pad + "    </div>\n")
	}
	sb.WriteString(pad + "</details>\n")
}

var inlineCode = regexp.MustCompile("`([^`]+)`")

// formatAnswer escapes an answer and splits it into paragraphs on blank
// lines. Backtick spans become <code>.
func formatAnswer(answer string) string {
	var paras []string
	for _, p := range strings.Split(answer, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = html.EscapeString(p)
		p = inlineCode.ReplaceAllString(p, "<code class=\"inline-code\">$1</code>")
		p = strings.ReplaceAll(p, "\n", "<br>")
		paras = append(paras, "<p>"+p+"</p>")
	}
	return strings.Join(paras, "")
}

// =============================================================================
// EMBEDDED CSS AND JAVASCRIPT
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --accent-blue: #7aa2f7;
            --accent-red: #f7768e;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f5f5f5;
            --text-primary: #1a1b26;
            --text-muted: #6b7280;
            --border-color: #e5e7eb;
            --accent-blue: #2563eb;
            --accent-red: #dc2626;
        }

        body {
            font-family: var(--font-sans);
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 960px; margin: 0 auto; padding: 24px; }
        .header { border-bottom: 1px solid var(--border-color); padding-bottom: 16px; margin-bottom: 24px; }
        .metadata { display: flex; gap: 16px; flex-wrap: wrap; color: var(--text-muted); font-size: 14px; margin-top: 8px; }
        .theme-toggle {
            margin-left: auto;
            background: var(--bg-secondary);
            color: var(--text-primary);
            border: 1px solid var(--border-color);
            border-radius: 4px;
            padding: 2px 8px;
            cursor: pointer;
        }

        .node { margin: 8px 0; }
        .question { font-weight: 600; color: var(--accent-blue); cursor: pointer; }
        .answer { margin: 4px 0 8px 18px; }
        .answer p + p { margin-top: 8px; }
        .answer.error { color: var(--accent-red); font-style: italic; }
        .children { margin-left: 18px; padding-left: 12px; border-left: 1px solid var(--border-color); }
        .inline-code { font-family: var(--font-mono); background: var(--bg-secondary); padding: 0 4px; border-radius: 3px; }
        .footer { margin-top: 32px; color: var(--text-muted); font-size: 13px; text-align: center; }

        @media print {
            .theme-toggle { display: none; }
        }
    </style>
`

const script = `    <script>
        function toggleTheme() {
            const body = document.body;
            if (body.classList.contains('dark-theme')) {
                body.classList.replace('dark-theme', 'light-theme');
                localStorage.setItem('theme', 'light');
            } else {
                body.classList.replace('light-theme', 'dark-theme');
                localStorage.setItem('theme', 'dark');
            }
        }

        document.addEventListener('DOMContentLoaded', function() {
            const savedTheme = localStorage.getItem('theme');
            if (savedTheme) {
                document.body.classList.remove('dark-theme', 'light-theme');
                document.body.classList.add(savedTheme + '-theme');
            }
        });
    </script>
`
