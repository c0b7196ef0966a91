package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bz888/eyesy-bot/internal/config"
	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/render"
	"github.com/bz888/eyesy-bot/internal/ui"
)

var flags *config.Flags

var rootCmd = &cobra.Command{
	Use:   "eyesy",
	Short: "Chat with EYESY Bot about visuals for the EYESY video synthesizer",
	Long: "EYESY Bot writes Python modes for the EYESY video synthesizer.\n" +
		"Without a subcommand it opens the terminal UI, or a plain prompt when stdin is not a terminal.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			return runChat(cmd, "")
		}
		return runTUI(cmd)
	},
}

func init() {
	flags = config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd, chatCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runTUI(cmd *cobra.Command) error {
	cfg, err := flags.Resolve()
	if err != nil {
		return err
	}

	u := ui.New(cfg.Dev, render.NewMarkdown(render.DefaultWidth))
	if err := logger.InitLogger(cfg.Dev, cfg.LogPath, u.DebugConsole()); err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	opts := ui.Options{
		Controller: a.controller(u),
		Models:     a.router,
		ExportPath: cfg.ExportPath,
	}
	if a.voice != nil {
		opts.Voice = a.voice
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return a.watchPrompt(ctx) })
	eg.Go(func() error {
		defer cancel()
		return u.Run(ctx, opts)
	})
	err = eg.Wait()
	a.session.Cancel()
	return err
}
