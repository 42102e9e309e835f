package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/console"
	"github.com/park285/kata-chess-viewer/internal/notify"
	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/viewer"
)

func newBotCmd(fl *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Log in with the configured key and answer every move prompt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, fl)
			if err != nil {
				return err
			}
			if cfg.APIKey == "" {
				return errors.New("bot needs an api key (--api-key or KATA_API_KEY)")
			}
			ctx := cmd.Context()
			rt := newRuntime(cfg, fl.dryRun)
			if err := rt.attachOutbound(ctx, notify.NewLogNotifier(obslog.L())); err != nil {
				return err
			}
			bot, err := rt.newBot(ctx)
			if err != nil {
				return err
			}
			rt.opts = append(rt.opts, viewer.WithPositionHandler(bot))
			v := viewer.New(rt.oracle, rt.sender, rt.opts...)

			onConnect := func(ctx context.Context) {
				if err := v.Login(ctx, cfg.APIKey); err != nil {
					obslog.L().Warn("login_failed", zap.Error(err))
					return
				}
				if cfg.PlayerName == "" {
					return
				}
				if err := v.SetName(ctx, cfg.PlayerName); err != nil {
					obslog.L().Warn("set_name_failed", zap.Error(err))
				}
			}
			return rt.run(ctx, v, onConnect)
		},
	}
}

// consoleNotifier forwards to a console bound after construction.
type consoleNotifier struct {
	get func() *console.Console
}

func (c consoleNotifier) Notify(ctx context.Context, n notify.Notice) error {
	if con := c.get(); con != nil {
		return con.Notify(ctx, n)
	}
	return nil
}
