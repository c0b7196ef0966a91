package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/bz888/eyesy-bot/internal/render"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// termPresenter prints the conversation to a line-oriented terminal.
// Replies stream as raw text; whole messages go through the markdown
// renderer when there is one.
type termPresenter struct {
	out io.Writer
	md  *render.Markdown

	echo      string
	printed   string
	streaming bool
	shown     bool
}

func newTermPresenter(out io.Writer, md *render.Markdown) *termPresenter {
	return &termPresenter{out: out, md: md}
}

// typed marks line as already visible at the prompt so it is not echoed.
func (p *termPresenter) typed(line string) {
	p.echo = line
}

func (p *termPresenter) render(text string) string {
	if p.md == nil {
		return text
	}
	return p.md.Render(text)
}

func (p *termPresenter) DisplayMessage(role transcript.Role, content string) {
	p.shown = true
	if role == transcript.RoleUser {
		if p.echo != "" && content == p.echo {
			p.echo = ""
			return
		}
		fmt.Fprintf(p.out, "You: %s\n\n", content)
		return
	}
	fmt.Fprintf(p.out, "EYESY Bot:\n%s\n\n", strings.TrimRight(p.render(content), "\n"))
}

func (p *termPresenter) ClearDisplay() {
	if p.shown {
		fmt.Fprintln(p.out, "--- new conversation ---")
	}
}

func (p *termPresenter) RepaintStreaming(partial string) {
	if !p.streaming {
		p.streaming = true
		p.printed = ""
		fmt.Fprint(p.out, "EYESY Bot:\n")
	}
	if strings.HasPrefix(partial, p.printed) {
		fmt.Fprint(p.out, partial[len(p.printed):])
	} else {
		fmt.Fprint(p.out, "\n"+partial)
	}
	p.printed = partial
}

func (p *termPresenter) FinishStreaming(final string) {
	switch {
	case p.streaming && final == "":
		fmt.Fprint(p.out, "\n[reply discarded]\n\n")
	case p.streaming:
		fmt.Fprint(p.out, "\n\n")
	case final != "":
		p.DisplayMessage(transcript.RoleAssistant, final)
	}
	p.streaming = false
	p.printed = ""
}

func (p *termPresenter) ShowError(err error) {
	fmt.Fprintf(p.out, "Error: %v\n\n", err)
}

func (p *termPresenter) ShowNotice(text string) {
	fmt.Fprintf(p.out, "%s\n\n", strings.TrimRight(text, "\n"))
}
