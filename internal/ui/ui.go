package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/render"
	"github.com/bz888/eyesy-bot/internal/session"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// ModelLister lists the models the configured providers offer.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// VoiceInput records one spoken message.
type VoiceInput interface {
	Listen(ctx context.Context) (string, error)
}

type Options struct {
	Controller *session.Controller
	Models     ModelLister
	// Voice is nil when speech recognition is not configured.
	Voice      VoiceInput
	ExportPath string
}

// UI is the terminal front end. It implements session.Presenter.
type UI struct {
	app          *tview.Application
	pages        *tview.Pages
	mainFlex     *tview.Flex
	textView     *tview.TextView
	textArea     *tview.TextArea
	debugConsole *tview.TextView
	buttons      *tview.Flex

	mu            sync.Mutex
	conv          *conversation
	redrawPending bool
	debugShown    bool
	// stopped is set before the event loop stops; nothing may be queued after.
	stopped atomic.Bool

	opts        Options
	ctx         context.Context
	localLogger *logger.Logger
}

var _ session.Presenter = (*UI)(nil)

// New builds the widgets. The debug console exists from the start so the
// logger can mirror into it before Run.
func New(dev bool, md *render.Markdown) *UI {
	u := &UI{
		app:        tview.NewApplication(),
		conv:       newConversation(md),
		debugShown: dev,
	}
	u.app.EnablePaste(true)
	u.app.EnableMouse(true)

	u.debugConsole = u.initDebugConsole()
	u.textView = u.initChatViewer()
	u.textArea = initChatInput()
	return u
}

func (u *UI) DebugConsole() *tview.TextView {
	return u.debugConsole
}

func (u *UI) initChatViewer() *tview.TextView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true).
		SetScrollable(true)

	textView.SetTitle("EYESY Bot").SetBorder(true)
	return textView
}

func initChatInput() *tview.TextArea {
	textArea := tview.NewTextArea().
		SetPlaceholder("Enter message, or /help")
	textArea.SetTitle("Message").SetBorder(true)
	return textArea
}

func (u *UI) initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetChangedFunc(func() {
			u.app.Draw()
		}).
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

func (u *UI) initButtons() *tview.Flex {
	download := tview.NewButton("Download Chat").SetSelectedFunc(func() {
		u.saveChat(u.opts.ExportPath)
	})
	upload := tview.NewButton("Upload Chat").SetSelectedFunc(func() {
		u.showUploadModal()
	})
	clearButton := tview.NewButton("Clear").SetSelectedFunc(func() {
		u.opts.Controller.OnClearRequested()
		u.app.SetFocus(u.textArea)
	})
	clearButton.SetStyle(tcell.StyleDefault.Background(tcell.ColorDarkRed))

	return tview.NewFlex().
		AddItem(download, 17, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(upload, 15, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(clearButton, 9, 0, false).
		AddItem(nil, 0, 1, false)
}

// Run shows the UI until the user quits or ctx is done.
func (u *UI) Run(ctx context.Context, opts Options) error {
	u.opts = opts
	u.ctx = ctx
	u.localLogger = logger.NewLogger("views")

	u.textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			u.app.SetFocus(u.textArea)
		}
		return event
	})

	u.buttons = u.initButtons()
	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.textView, 0, 1, false).
		AddItem(u.textArea, 6, 0, true).
		AddItem(u.buttons, 1, 0, false)
	u.mainFlex = tview.NewFlex().
		AddItem(subFlex, 0, 2, true)
	if u.debugShown {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
	}
	u.pages = tview.NewPages().AddPage("main", u.mainFlex, true, true)

	u.setInputCapture()
	opts.Controller.Start()

	go func() {
		<-ctx.Done()
		u.stop()
	}()

	err := u.app.SetRoot(u.pages, true).SetFocus(u.textArea).Run()
	u.stopped.Store(true)
	return err
}

func (u *UI) stop() {
	u.stopped.Store(true)
	u.app.Stop()
}

func (u *UI) setInputCapture() {
	u.textArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyESC:
			if u.textView.GetText(false) != "" {
				u.app.SetFocus(u.textView)
			}
		case tcell.KeyEnter:
			if event.Modifiers()&tcell.ModShift != 0 {
				return event
			}
			content := u.textArea.GetText()
			if strings.TrimSpace(content) == "" {
				return nil
			}
			u.textArea.SetText("", true)

			if cmd, ok := session.ParseCommand(content); ok {
				u.runCommand(cmd)
				return nil
			}
			u.submit(content)
			return nil
		}
		return event
	})
}

// submit runs a turn off the event loop. The input stays disabled until the
// reply has finished streaming.
func (u *UI) submit(content string) {
	u.setBusy(true)
	go func() {
		defer u.queue(func() { u.setBusy(false) })
		if err := u.opts.Controller.OnUserSubmit(u.ctx, content); err != nil {
			u.localLogger.Warn("turn ended with: ", err)
		}
	}()
}

func (u *UI) setBusy(busy bool) {
	u.textArea.SetDisabled(busy)
	if busy {
		u.textArea.SetTitle("Message (waiting for EYESY Bot)")
		return
	}
	u.textArea.SetTitle("Message")
	u.app.SetFocus(u.textArea)
}

func (u *UI) refresh() {
	u.mu.Lock()
	text := u.conv.markup()
	u.redrawPending = false
	u.mu.Unlock()
	u.textView.SetText(text)
	u.textView.ScrollToEnd()
}

// update mutates the conversation and schedules a repaint. Presenter calls
// come from both the event loop and turn goroutines, and QueueUpdateDraw
// blocks until the loop runs it, so the repaint is queued from its own
// goroutine and coalesced with any repaint already pending.
// Once the loop has stopped only the conversation is updated.
func (u *UI) update(f func(c *conversation)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	f(u.conv)
	if u.redrawPending || u.stopped.Load() {
		return
	}
	u.redrawPending = true
	go u.queue(u.refresh)
}

// queue runs f on the event loop and redraws. It must not be called from
// the loop itself.
func (u *UI) queue(f func()) {
	if u.stopped.Load() {
		return
	}
	u.app.QueueUpdateDraw(f)
}

func (u *UI) DisplayMessage(role transcript.Role, content string) {
	u.update(func(c *conversation) { c.add(role, content) })
}

func (u *UI) ClearDisplay() {
	u.update(func(c *conversation) { c.reset() })
}

func (u *UI) RepaintStreaming(partial string) {
	u.update(func(c *conversation) { c.stream(partial) })
}

func (u *UI) FinishStreaming(final string) {
	u.update(func(c *conversation) { c.finish(final) })
}

func (u *UI) ShowError(err error) {
	u.update(func(c *conversation) { c.error(err) })
}

func (u *UI) ShowNotice(text string) {
	u.update(func(c *conversation) { c.notice(text) })
}

func (u *UI) toggleDebugConsole() {
	u.debugShown = !u.debugShown
	logger.SetMirror(u.debugShown)
	if u.debugShown {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
		u.ShowNotice("Debug console enabled")
	} else {
		u.mainFlex.RemoveItem(u.debugConsole)
		u.ShowNotice("Debug console disabled")
	}
}

func (u *UI) quitApp() {
	fmt.Fprintf(u.textView, "Bye bye\n")
	u.opts.Controller.Session().Cancel()
	u.localLogger.Info("shutting down")
	u.stop()
}
