package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/persist"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// Presenter is the display side of a conversation. Implementations must be
// safe to call from the goroutine that runs OnUserSubmit.
type Presenter interface {
	DisplayMessage(role transcript.Role, content string)
	ClearDisplay()
	// RepaintStreaming replaces the in-progress reply with partial.
	RepaintStreaming(partial string)
	// FinishStreaming ends the in-progress reply. final is empty when the
	// turn failed or was cancelled.
	FinishStreaming(final string)
	ShowError(err error)
	ShowNotice(text string)
}

// Controller connects a Presenter to a Session.
type Controller struct {
	session  *Session
	view     Presenter
	greeting string

	counter     *transcript.TokenCounter
	tokenBudget int

	localLogger *logger.Logger
}

type ControllerOption func(*Controller)

// WithGreeting sets the message shown after start, clear and import. It is
// never part of the transcript.
func WithGreeting(greeting string) ControllerOption {
	return func(c *Controller) { c.greeting = greeting }
}

// WithTokenBudget warns once the transcript grows past budget tokens.
func WithTokenBudget(counter *transcript.TokenCounter, budget int) ControllerOption {
	return func(c *Controller) {
		c.counter = counter
		c.tokenBudget = budget
	}
}

func NewController(s *Session, view Presenter, opts ...ControllerOption) *Controller {
	c := &Controller{
		session:     s,
		view:        view,
		localLogger: logger.NewLogger("controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Session() *Session {
	return c.session
}

// Start paints the initial screen.
func (c *Controller) Start() {
	c.view.ClearDisplay()
	c.greet()
}

func (c *Controller) greet() {
	if c.greeting != "" {
		c.view.DisplayMessage(transcript.RoleAssistant, c.greeting)
	}
}

// OnUserSubmit runs one turn to completion, repainting the reply as it
// streams. On failure the user's message stays in the transcript and no
// reply is appended.
func (c *Controller) OnUserSubmit(ctx context.Context, text string) error {
	turn, err := c.session.Submit(ctx, text)
	if err != nil {
		c.view.ShowError(err)
		return err
	}
	c.view.DisplayMessage(transcript.RoleUser, text)

	for turn.Next() {
		c.view.RepaintStreaming(turn.Text())
	}
	if err := turn.Err(); err != nil {
		c.view.FinishStreaming("")
		if errors.Is(err, ErrCancelled) {
			c.view.ShowNotice("Response cancelled.")
		} else {
			c.view.ShowError(err)
		}
		return err
	}

	c.view.FinishStreaming(turn.Text())
	c.checkBudget()
	return nil
}

func (c *Controller) checkBudget() {
	if c.counter == nil || c.tokenBudget <= 0 {
		return
	}
	n := c.counter.Count(c.session.Snapshot())
	c.localLogger.Info("transcript is ", n, " tokens")
	if n > c.tokenBudget {
		c.view.ShowNotice(fmt.Sprintf(
			"This conversation is %d tokens, over the %d token budget. Every message sends the whole history; consider /save and /clear.",
			n, c.tokenBudget))
	}
}

// Tokens reports the transcript's current token count, or -1 without a counter.
func (c *Controller) Tokens() int {
	if c.counter == nil {
		return -1
	}
	return c.counter.Count(c.session.Snapshot())
}

func (c *Controller) OnClearRequested() {
	c.session.Clear()
	c.view.ClearDisplay()
	c.greet()
	c.localLogger.Info("conversation cleared")
}

// OnExportRequested returns the transcript as a chat.json document.
func (c *Controller) OnExportRequested() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.session.Export(&buf); err != nil {
		c.view.ShowError(err)
		return nil, err
	}
	return buf.Bytes(), nil
}

// OnImportRequested replaces the conversation with the one in r and replays
// it. Parse and validation failures leave the conversation as it was.
func (c *Controller) OnImportRequested(r io.Reader) error {
	messages, err := persist.Import(r)
	if err == nil {
		err = c.session.Replace(messages)
	}
	if err != nil {
		c.localLogger.Error("import failed: ", err)
		c.view.ShowError(err)
		return err
	}

	c.replay(messages)
	c.localLogger.Info("imported ", len(messages), " messages")
	return nil
}

// Replay repaints the whole conversation, for a presenter that attaches to
// a session already in progress.
func (c *Controller) Replay() {
	c.replay(c.session.Snapshot())
}

func (c *Controller) replay(messages []transcript.Message) {
	c.view.ClearDisplay()
	c.greet()
	for _, m := range messages {
		if m.Role == transcript.RoleSystem {
			continue
		}
		c.view.DisplayMessage(m.Role, m.Content)
	}
}

// SaveFile exports to path.
func (c *Controller) SaveFile(path string) error {
	if err := persist.WriteFile(path, c.session.Snapshot()); err != nil {
		c.view.ShowError(err)
		return err
	}
	c.view.ShowNotice("Saved conversation to " + path)
	return nil
}

// LoadFile imports from path; only .json files are accepted.
func (c *Controller) LoadFile(path string) error {
	if !persist.IsJSONName(path) {
		err := fmt.Errorf("%s: %w", path, persist.ErrNotJSONFile)
		c.view.ShowError(err)
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		c.view.ShowError(err)
		return err
	}
	return c.OnImportRequested(bytes.NewReader(raw))
}
