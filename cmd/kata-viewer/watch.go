package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/console"
	"github.com/park285/kata-chess-viewer/internal/msgcat"
	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/present"
	"github.com/park285/kata-chess-viewer/internal/render"
	"github.com/park285/kata-chess-viewer/internal/viewer"
)

func newWatchCmd(fl *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Spectate every game and play from an interactive prompt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, fl)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt := newRuntime(cfg, fl.dryRun)

			cat, err := msgcat.New(cfg.MessagesDir)
			if err != nil {
				return err
			}
			formatter := present.NewFormatter(cat, present.WithTournamentOrder(cfg.TournamentOrder))

			// the console needs the viewer and the viewer needs the console as
			// a notifier, so the console is bound after both exist
			var con *console.Console
			local := consoleNotifier{get: func() *console.Console { return con }}
			if err := rt.attachOutbound(ctx, local); err != nil {
				return err
			}
			if cfg.Autoplay {
				bot, err := rt.newBot(ctx)
				if err != nil {
					return err
				}
				rt.opts = append(rt.opts, viewer.WithObserver(bot))
			}
			v := viewer.New(rt.oracle, rt.sender, rt.opts...)
			con = console.New(v, formatter, render.New(64), cfg.RenderDir, cmd.OutOrStdout())

			onConnect := func(ctx context.Context) {
				if err := v.Observe(ctx); err != nil {
					obslog.L().Warn("observe_failed", zap.Error(err))
				}
				key := v.CurrentKey()
				if key == "" {
					key = cfg.APIKey
				}
				if key == "" {
					return
				}
				if err := v.Login(ctx, key); err != nil {
					obslog.L().Warn("login_failed", zap.Error(err))
				}
			}
			return rt.run(ctx, v, onConnect, func(ctx context.Context) error {
				if err := con.Run(ctx, os.Stdin); err != nil {
					return err
				}
				// quit ends the whole command
				return context.Canceled
			})
		},
	}
}
