package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bz888/eyesy-bot/internal/api"
	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/render"
	"github.com/bz888/eyesy-bot/internal/session"
)

const historyFile = ".eyesy_history"

var chatServer string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat at a plain line prompt",
	Long:  "Chat at a plain line prompt. With --server the conversation lives on a running `eyesy serve`.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, chatServer)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatServer, "server", "", "Base URL of a running eyesy server, e.g. "+api.DefaultBaseURL)
}

// lineReader is satisfied by *liner.State and by scanReader.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// scanReader reads piped input line by line.
type scanReader struct {
	scanner *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &scanReader{scanner: s}
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func runChat(cmd *cobra.Command, serverURL string) error {
	cfg, err := flags.Resolve()
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.Dev, cfg.LogPath, nil); err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	var md *render.Markdown
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		md = render.NewMarkdown(render.DefaultWidth)
	}
	view := newTermPresenter(out, md)

	var conv conversation
	var a *app
	if serverURL != "" {
		conv = newRemoteConversation(api.NewClient(serverURL, nil), view)
	} else {
		a, err = newApp(ctx, cfg)
		if err != nil {
			return err
		}
		conv = newLocalConversation(a.controller(view), a.router, a.voice)
	}

	var in lineReader
	if isatty.IsTerminal(os.Stdin.Fd()) {
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)
		history := historyPath()
		if f, err := os.Open(history); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(history); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
		in = historyReader{line}
	} else {
		in = newScanReader(cmd.InOrStdin())
	}

	eg, ctx := errgroup.WithContext(ctx)
	if a != nil {
		eg.Go(func() error { return a.watchPrompt(ctx) })
	}
	eg.Go(func() error {
		defer cancel()
		return runREPL(ctx, in, conv, view, cfg.ExportPath)
	})
	return eg.Wait()
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}

// historyReader records every non-empty line in the liner history.
type historyReader struct {
	*liner.State
}

func (h historyReader) Prompt(prompt string) (string, error) {
	line, err := h.State.Prompt(prompt)
	if err == nil && strings.TrimSpace(line) != "" {
		h.AppendHistory(line)
	}
	return line, err
}

// runREPL reads lines until EOF, Ctrl-C at the prompt or /bye.
func runREPL(ctx context.Context, in lineReader, conv conversation, view *termPresenter, exportPath string) error {
	conv.Start(ctx)
	for {
		line, err := in.Prompt(">>> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if cmd, ok := session.ParseCommand(line); ok {
			if quit := runChatCommand(ctx, cmd, conv, view, exportPath); quit {
				return nil
			}
			continue
		}

		view.typed(line)
		_ = conv.Submit(ctx, line)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// runChatCommand reports whether the REPL should exit.
func runChatCommand(ctx context.Context, cmd session.Command, conv conversation, view *termPresenter, exportPath string) bool {
	switch cmd.Name {
	case "/help":
		view.ShowNotice(session.HelpText())
	case "/bye":
		return true
	case "/clear":
		if err := conv.Clear(ctx); err != nil {
			view.ShowError(err)
		}
	case "/save":
		path := cmd.Arg
		if path == "" {
			path = exportPath
		}
		_ = conv.Save(ctx, path)
	case "/load":
		if cmd.Arg == "" {
			view.ShowNotice("Usage: /load <path>")
			return false
		}
		_ = conv.Load(ctx, cmd.Arg)
	case "/models":
		models, err := conv.Models(ctx)
		if err != nil {
			view.ShowError(err)
			return false
		}
		view.ShowNotice("Available models:\n  " + strings.Join(models, "\n  "))
	case "/model":
		if cmd.Arg == "" {
			model, err := conv.Model(ctx)
			if err != nil {
				view.ShowError(err)
				return false
			}
			view.ShowNotice("Using model: " + model)
			return false
		}
		if err := conv.SetModel(ctx, cmd.Arg); err != nil {
			view.ShowError(err)
			return false
		}
		view.ShowNotice("Using model: " + cmd.Arg)
	case "/copy":
		copyReply(conv, view)
	case "/tokens":
		if n := conv.Tokens(); n >= 0 {
			view.ShowNotice(fmt.Sprintf("This conversation is %d tokens.", n))
		} else {
			view.ShowNotice("Token counting is not available.")
		}
	case "/debug":
		view.ShowNotice("The debug console is only available in the terminal UI; use --dev to log to stderr.")
	case "/voice":
		text, err := conv.Listen(ctx)
		if err != nil {
			view.ShowError(err)
			return false
		}
		view.ShowNotice("Heard: " + text)
		_ = conv.Submit(ctx, text)
	}
	return false
}

func copyReply(conv conversation, view *termPresenter) {
	reply, ok := conv.LastReply()
	if !ok {
		view.ShowNotice("Nothing to copy yet.")
		return
	}
	code, err := render.CopyReply(reply)
	switch {
	case err != nil:
		view.ShowError(fmt.Errorf("copy to clipboard: %w", err))
	case code:
		view.ShowNotice("Copied the code block to the clipboard.")
	default:
		view.ShowNotice("Copied the reply to the clipboard.")
	}
}
