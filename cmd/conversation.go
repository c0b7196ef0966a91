package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bz888/eyesy-bot/internal/api"
	"github.com/bz888/eyesy-bot/internal/api/server"
	"github.com/bz888/eyesy-bot/internal/config"
	"github.com/bz888/eyesy-bot/internal/persist"
	"github.com/bz888/eyesy-bot/internal/session"
	"github.com/bz888/eyesy-bot/internal/speech"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// conversation is what the line prompt drives: either a session in this
// process or one held by a server.
type conversation interface {
	Start(ctx context.Context)
	Submit(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Save(ctx context.Context, path string) error
	Load(ctx context.Context, path string) error
	Models(ctx context.Context) ([]string, error)
	Model(ctx context.Context) (string, error)
	SetModel(ctx context.Context, model string) error
	LastReply() (string, bool)
	Tokens() int
	Listen(ctx context.Context) (string, error)
}

type modelLister interface {
	Models(ctx context.Context) ([]string, error)
}

type voiceInput interface {
	Listen(ctx context.Context) (string, error)
}

type localConversation struct {
	ctrl   *session.Controller
	models modelLister
	voice  voiceInput
}

func newLocalConversation(ctrl *session.Controller, models modelLister, voice *speech.Listener) *localConversation {
	c := &localConversation{ctrl: ctrl, models: models}
	if voice != nil {
		c.voice = voice
	}
	return c
}

func (c *localConversation) Start(context.Context) { c.ctrl.Start() }

func (c *localConversation) Submit(ctx context.Context, text string) error {
	return c.ctrl.OnUserSubmit(ctx, text)
}

func (c *localConversation) Clear(context.Context) error {
	c.ctrl.OnClearRequested()
	return nil
}

func (c *localConversation) Save(_ context.Context, path string) error { return c.ctrl.SaveFile(path) }
func (c *localConversation) Load(_ context.Context, path string) error { return c.ctrl.LoadFile(path) }

func (c *localConversation) Models(ctx context.Context) ([]string, error) {
	return c.models.Models(ctx)
}

func (c *localConversation) Model(context.Context) (string, error) {
	return c.ctrl.Session().Model(), nil
}

func (c *localConversation) SetModel(_ context.Context, model string) error {
	c.ctrl.Session().SetModel(model)
	return nil
}

func (c *localConversation) LastReply() (string, bool) { return c.ctrl.Session().LastReply() }
func (c *localConversation) Tokens() int               { return c.ctrl.Tokens() }

func (c *localConversation) Listen(ctx context.Context) (string, error) {
	if c.voice == nil {
		return "", speech.ErrDisabled
	}
	return c.voice.Listen(ctx)
}

var errRemoteVoice = errors.New("voice input is not available when chatting through a server")

// remoteConversation drives a conversation held by `eyesy serve`.
type remoteConversation struct {
	client *api.Client
	view   session.Presenter
	last   string
}

func newRemoteConversation(client *api.Client, view session.Presenter) *remoteConversation {
	return &remoteConversation{client: client, view: view}
}

// Start shows what the server already holds.
func (c *remoteConversation) Start(ctx context.Context) {
	raw, err := c.client.Export(ctx)
	if err != nil {
		c.replay(nil)
		c.view.ShowError(fmt.Errorf("reach server: %w", err))
		return
	}
	messages, err := persist.Import(bytes.NewReader(raw))
	if err != nil {
		c.view.ShowError(err)
		return
	}
	c.replay(messages)
}

func (c *remoteConversation) replay(messages []transcript.Message) {
	c.view.ClearDisplay()
	c.view.DisplayMessage(transcript.RoleAssistant, config.Greeting)
	c.last = ""
	for _, m := range messages {
		if m.Role == transcript.RoleSystem {
			continue
		}
		c.view.DisplayMessage(m.Role, m.Content)
		if m.Role == transcript.RoleAssistant {
			c.last = m.Content
		}
	}
}

func (c *remoteConversation) Submit(ctx context.Context, text string) error {
	c.view.DisplayMessage(transcript.RoleUser, text)
	final, err := c.client.Chat(ctx, text, func(line server.ChatResponse) {
		switch {
		case line.Notice != "":
			c.view.ShowNotice(line.Notice)
		case line.Error == "" && !line.Done:
			c.view.RepaintStreaming(line.Content)
		}
	})
	if err != nil {
		c.view.FinishStreaming("")
		c.view.ShowError(err)
		return err
	}
	c.view.FinishStreaming(final)
	c.last = final
	return nil
}

func (c *remoteConversation) Clear(ctx context.Context) error {
	if err := c.client.Clear(ctx); err != nil {
		return err
	}
	c.replay(nil)
	return nil
}

func (c *remoteConversation) Save(ctx context.Context, path string) error {
	raw, err := c.client.Export(ctx)
	if err == nil {
		var messages []transcript.Message
		messages, err = persist.Import(bytes.NewReader(raw))
		if err == nil {
			err = persist.WriteFile(path, messages)
		}
	}
	if err != nil {
		c.view.ShowError(err)
		return err
	}
	c.view.ShowNotice("Saved conversation to " + path)
	return nil
}

func (c *remoteConversation) Load(ctx context.Context, path string) error {
	if !persist.IsJSONName(path) {
		err := fmt.Errorf("%s: %w", path, persist.ErrNotJSONFile)
		c.view.ShowError(err)
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		c.view.ShowError(err)
		return err
	}
	defer f.Close()

	messages, err := c.client.Import(ctx, f)
	if err != nil {
		c.view.ShowError(err)
		return err
	}
	c.replay(messages)
	return nil
}

func (c *remoteConversation) Models(ctx context.Context) ([]string, error) {
	return c.client.Models(ctx)
}

func (c *remoteConversation) Model(ctx context.Context) (string, error) {
	return c.client.Model(ctx)
}

func (c *remoteConversation) SetModel(ctx context.Context, model string) error {
	return c.client.SetModel(ctx, model)
}

func (c *remoteConversation) LastReply() (string, bool) { return c.last, c.last != "" }
func (c *remoteConversation) Tokens() int               { return -1 }

func (c *remoteConversation) Listen(context.Context) (string, error) {
	return "", errRemoteVoice
}
