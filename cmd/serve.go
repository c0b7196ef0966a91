package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bz888/eyesy-bot/internal/api/server"
	"github.com/bz888/eyesy-bot/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation over HTTP and websockets",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		srv := server.New(a.session, a.router, a.ctrlOpts...)

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error { return a.watchPrompt(ctx) })
		eg.Go(func() error { return srv.Run(ctx, cfg.Addr) })
		return eg.Wait()
	},
}
