// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/pry/settings"
)

// Renderer paints formatted values. It is safe for concurrent use.
type Renderer struct {
	lip *lipgloss.Renderer
}

// New creates a renderer writing styles for output. Whether color is
// used is decided per call by the settings snapshot, so the color
// profile is forced rather than detected.
func New(output io.Writer) *Renderer {
	lip := lipgloss.NewRenderer(output, termenv.WithProfile(termenv.ANSI256))
	lip.SetColorProfile(termenv.ANSI256)
	return &Renderer{lip: lip}
}

// Render formats value with the snapshot's inspect options and paints
// it with the eval_result role or syntax highlighting.
func (r *Renderer) Render(value any, snapshot settings.Snapshot) string {
	text := Inspect(value, snapshot.Inspect)
	if !snapshot.Colors.Enabled {
		return text
	}
	if snapshot.Inspect.SyntaxColors {
		if highlighted, ok := highlight(text); ok {
			return highlighted
		}
	}
	return r.Paint(text, snapshot.Colors.Role(settings.RoleEvalResult))
}

// Role paints text with a color role from snapshot.
func (r *Renderer) Role(snapshot settings.Snapshot, role, text string) string {
	return r.Paint(text, snapshot.Colors.Role(role))
}

// Diagnostic formats a short "** (context) message" line in the
// eval_error role.
func (r *Renderer) Diagnostic(snapshot settings.Snapshot, context string, err error) string {
	return r.Role(snapshot, settings.RoleEvalError, "** ("+context+") "+err.Error())
}

// Paint applies a display-attribute string to each line of text. An
// empty or unparseable attribute string leaves text unchanged.
func (r *Renderer) Paint(text, attributeSpec string) string {
	if attributeSpec == "" {
		return text
	}
	attributes, err := settings.ParseAttributes(attributeSpec)
	if err != nil || attributes == (settings.Attributes{}) {
		return text
	}

	style := r.lip.NewStyle().
		Bold(attributes.Bold).
		Faint(attributes.Faint).
		Italic(attributes.Italic).
		Underline(attributes.Underline).
		Reverse(attributes.Reverse)
	if attributes.Foreground != "" {
		style = style.Foreground(lipgloss.Color(attributes.Foreground))
	}

	// Painting per line keeps lipgloss from padding lines to a common
	// width.
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// highlight colors text as Go literal syntax.
func highlight(text string) (string, bool) {
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, text, "go", "terminal256", "monokai"); err != nil {
		return "", false
	}
	return strings.TrimRight(buffer.String(), "\n"), true
}
