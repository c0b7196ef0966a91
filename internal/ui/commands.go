package ui

import (
	"errors"
	"fmt"

	"github.com/bz888/eyesy-bot/internal/render"
	"github.com/bz888/eyesy-bot/internal/session"
	"github.com/bz888/eyesy-bot/internal/speech"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// runCommand is called on the event loop.
func (u *UI) runCommand(cmd session.Command) {
	c := u.opts.Controller
	u.localLogger.Info("command ", cmd.Name, " ", cmd.Arg)

	switch cmd.Name {
	case "/help":
		u.DisplayMessage(transcript.RoleAssistant, session.HelpText())
	case "/bye":
		u.quitApp()
	case "/clear":
		c.OnClearRequested()
	case "/save":
		path := cmd.Arg
		if path == "" {
			path = u.opts.ExportPath
		}
		u.saveChat(path)
	case "/load":
		if cmd.Arg == "" {
			u.showUploadModal()
			return
		}
		u.loadChat(cmd.Arg)
	case "/models":
		u.setBusy(true)
		go u.createModelModal()
	case "/model":
		if cmd.Arg == "" {
			u.ShowNotice("Using model: " + c.Session().Model())
			return
		}
		c.Session().SetModel(cmd.Arg)
		u.ShowNotice("Using model: " + cmd.Arg)
	case "/copy":
		u.copyLastReply()
	case "/tokens":
		if n := c.Tokens(); n >= 0 {
			u.ShowNotice(fmt.Sprintf("This conversation is %d tokens.", n))
		} else {
			u.ShowNotice("Token counting is not available.")
		}
	case "/debug":
		u.toggleDebugConsole()
	case "/voice":
		u.voiceRecognition()
	}
}

func (u *UI) saveChat(path string) {
	if err := u.opts.Controller.SaveFile(path); err != nil {
		u.localLogger.Error("save failed: ", err)
	}
}

func (u *UI) loadChat(path string) {
	if err := u.opts.Controller.LoadFile(path); err != nil {
		u.localLogger.Error("load failed: ", err)
	}
}

func (u *UI) copyLastReply() {
	reply, ok := u.opts.Controller.Session().LastReply()
	if !ok {
		u.ShowNotice("Nothing to copy yet.")
		return
	}
	code, err := render.CopyReply(reply)
	switch {
	case err != nil:
		u.ShowError(fmt.Errorf("copy to clipboard: %w", err))
	case code:
		u.ShowNotice("Copied the code block to the clipboard.")
	default:
		u.ShowNotice("Copied the reply to the clipboard.")
	}
}

func (u *UI) voiceRecognition() {
	if u.opts.Voice == nil {
		u.ShowNotice(speech.ErrDisabled.Error())
		u.localLogger.Warn("API_KEY is not set, voice recognition is disabled")
		return
	}

	u.setBusy(true)
	u.ShowNotice("Listening...")
	go func() {
		text, err := u.opts.Voice.Listen(u.ctx)
		if err != nil {
			if errors.Is(err, speech.ErrNoSpeech) {
				u.ShowNotice("Didn't catch that, try /voice again.")
			} else {
				u.ShowError(err)
			}
			u.queue(func() { u.setBusy(false) })
			return
		}
		u.localLogger.Info("voice recognizer completed")
		u.queue(func() { u.submit(text) })
	}()
}
