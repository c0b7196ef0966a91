package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/bz888/eyesy-bot/internal/render"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

const (
	userHeader = "[red::b]You:[-::-]\n"
	botHeader  = "[green::b]EYESY Bot:[-::-]\n"
)

// conversation builds the tview markup for the chat pane. Finished messages
// are kept as rendered markup; the reply being streamed is kept raw and only
// rendered as markdown once it is final.
type conversation struct {
	md        *render.Markdown
	committed strings.Builder
	streaming *string
}

func newConversation(md *render.Markdown) *conversation {
	return &conversation{md: md}
}

func (c *conversation) add(role transcript.Role, content string) {
	switch role {
	case transcript.RoleUser:
		fmt.Fprintf(&c.committed, "%s%s\n\n", userHeader, tview.Escape(content))
	case transcript.RoleAssistant:
		c.committed.WriteString(botHeader)
		c.committed.WriteString(tview.TranslateANSI(c.md.Render(content)))
		c.committed.WriteString("\n")
	default:
		fmt.Fprintf(&c.committed, "[gray]%s[-]\n\n", tview.Escape(content))
	}
}

func (c *conversation) notice(text string) {
	fmt.Fprintf(&c.committed, "[yellow]%s[-]\n\n", tview.Escape(text))
}

func (c *conversation) error(err error) {
	fmt.Fprintf(&c.committed, "[red]Error: %s[-]\n\n", tview.Escape(err.Error()))
}

func (c *conversation) stream(partial string) {
	c.streaming = &partial
}

// finish drops the streamed text and, for a completed turn, commits the
// rendered reply.
func (c *conversation) finish(final string) {
	c.streaming = nil
	if final != "" {
		c.add(transcript.RoleAssistant, final)
	}
}

func (c *conversation) reset() {
	c.committed.Reset()
	c.streaming = nil
}

func (c *conversation) markup() string {
	if c.streaming == nil {
		return c.committed.String()
	}
	return c.committed.String() + botHeader + tview.Escape(*c.streaming) + "[::b]_[::-]\n"
}
