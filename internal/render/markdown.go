package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

const DefaultWidth = 80

// Markdown renders assistant replies for a terminal. A zero Markdown, or one
// whose renderer failed to build, passes text through unchanged.
type Markdown struct {
	mu sync.Mutex
	tr *glamour.TermRenderer
}

// NewMarkdown builds a renderer wrapping at width columns. Auto style picks
// dark or light from the terminal background.
func NewMarkdown(width int) *Markdown {
	if width <= 0 {
		width = DefaultWidth
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Markdown{}
	}
	return &Markdown{tr: tr}
}

// NewStyledMarkdown is NewMarkdown with a fixed glamour style ("dark",
// "light", "notty", ...), for output that is not a terminal.
func NewStyledMarkdown(style string, width int) *Markdown {
	if width <= 0 {
		width = DefaultWidth
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Markdown{}
	}
	return &Markdown{tr: tr}
}

// Render returns ANSI styled text, or the input when rendering fails.
func (m *Markdown) Render(text string) string {
	if m == nil || m.tr == nil {
		return text
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out, err := m.tr.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n") + "\n"
}
