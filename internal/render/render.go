// Package render turns assistant Markdown into terminal output or sanitised
// HTML.
package render

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Terminal renders Markdown for a terminal of a given width. The zero value
// is not usable; call NewTerminal.
type Terminal struct {
	mu    sync.Mutex
	width int
	r     *glamour.TermRenderer
}

// NewTerminal builds a renderer wrapping at width. GLAMOUR_STYLE overrides
// the detected style.
func NewTerminal(width int) (*Terminal, error) {
	t := &Terminal{}
	if err := t.SetWidth(width); err != nil {
		return nil, err
	}
	return t, nil
}

// SetWidth rebuilds the renderer when the wrap width changes.
func (t *Terminal) SetWidth(width int) error {
	if width < 20 {
		width = 20
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.r != nil && width == t.width {
		return nil
	}

	style := glamour.WithAutoStyle()
	if s := os.Getenv("GLAMOUR_STYLE"); s != "" {
		style = glamour.WithStandardStyle(s)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	t.r, t.width = r, width
	return nil
}

// Render returns the styled Markdown, or md itself if rendering fails.
// Partial Markdown from an in-flight stream is expected here, so a panic
// inside glamour is recovered too.
func (t *Terminal) Render(md string) (out string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			out = md
		}
	}()
	if t.r == nil {
		return md
	}
	s, err := t.r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(s, "\n")
}

var (
	mdOnce   sync.Once
	md       goldmark.Markdown
	sanitize *bluemonday.Policy
)

func htmlDeps() (goldmark.Markdown, *bluemonday.Policy) {
	mdOnce.Do(func() {
		md = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
		sanitize = bluemonday.UGCPolicy()
	})
	return md, sanitize
}

// HTML converts Markdown to HTML safe to inject into a page. Raw HTML in the
// source is stripped by the sanitiser.
func HTML(source string) string {
	m, p := htmlDeps()
	var buf bytes.Buffer
	if err := m.Convert([]byte(source), &buf); err != nil {
		return p.Sanitize("<p>" + source + "</p>")
	}
	return p.Sanitize(buf.String())
}
