package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/kata-chess-viewer/internal/archive"
	"github.com/park285/kata-chess-viewer/internal/autoplay"
	"github.com/park285/kata-chess-viewer/internal/config"
	"github.com/park285/kata-chess-viewer/internal/mirror"
	"github.com/park285/kata-chess-viewer/internal/notify"
	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/oracle"
	"github.com/park285/kata-chess-viewer/internal/transport"
	"github.com/park285/kata-chess-viewer/internal/uci"
	"github.com/park285/kata-chess-viewer/internal/viewer"
)

// runtime is everything one command runs: the connection, the viewer fold
// loop and the optional workers hanging off it.
type runtime struct {
	cfg    *config.AppConfig
	ws     *transport.WebSocket
	sender transport.Sender
	oracle oracle.Oracle

	opts    []viewer.Option
	workers []func(ctx context.Context) error
	closers []func() error
}

func newRuntime(cfg *config.AppConfig, dryRun bool) *runtime {
	ws := transport.NewWebSocket(transport.Options{
		URL:                  cfg.WSURL,
		MaxReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
		PingInterval:         cfg.PingInterval,
		Headers:              cfg.Headers,
	})
	ws.OnStateChange(func(s transport.State) {
		obslog.L().Info("ws_state", zap.Stringer("state", s))
	})
	return &runtime{
		cfg:    cfg,
		ws:     ws,
		sender: transport.NewEgress(ws, dryRun, obslog.L()),
		oracle: oracle.NewEngine(),
	}
}

// attachOutbound wires the integrations that are configured: Redis mirror,
// Postgres archive and webhook notices. local receives notices too.
func (rt *runtime) attachOutbound(ctx context.Context, local notify.Notifier) error {
	notifiers := notify.Multi{local}
	if rt.cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(rt.cfg.NotifyWebhookURL, notify.WithHeaderProvider(rt.cfg.Headers)))
	}
	rt.opts = append(rt.opts, viewer.WithNotifier(notifiers))

	if rt.cfg.RedisURL != "" {
		rdb, err := mirror.Dial(ctx, rt.cfg.RedisURL)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, rdb.Close)
		store := mirror.NewStore(rdb)
		rt.opts = append(rt.opts, viewer.WithObserver(store))
		rt.workers = append(rt.workers, store.Run)
	}
	if rt.cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(ctx, rt.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, repo.Close)
		arch := archive.NewArchiver(repo)
		rt.opts = append(rt.opts, viewer.WithObserver(arch))
		rt.workers = append(rt.workers, arch.Run)
	}
	return nil
}

// newBot builds the autoplay worker, backed by a UCI engine when one is
// configured and by the one-ply material search otherwise.
func (rt *runtime) newBot(ctx context.Context) (*autoplay.Bot, error) {
	var chooser autoplay.Chooser = autoplay.Material{Oracle: rt.oracle}
	if rt.cfg.StockfishPath != "" {
		sess, err := uci.NewSession(ctx, rt.cfg.StockfishPath, uci.Options{Threads: 1, HashMB: 64})
		if err != nil {
			return nil, fmt.Errorf("start engine: %w", err)
		}
		rt.closers = append(rt.closers, sess.Close)
		chooser = autoplay.Engine{Session: sess, Limits: uci.Limits{MoveTimeMillis: int(rt.cfg.EngineMoveTime / time.Millisecond)}}
	}
	bot := autoplay.New(chooser, rt.sender)
	rt.workers = append(rt.workers, bot.Run)
	return bot, nil
}

// run connects and supervises the viewer, the workers and extra until one
// fails or ctx ends.
func (rt *runtime) run(ctx context.Context, v *viewer.Viewer, onConnect func(ctx context.Context), extra ...func(ctx context.Context) error) error {
	rt.ws.OnMessage(func(raw string) {
		if err := v.Deliver(raw); err != nil {
			obslog.L().Debug("deliver_dropped", zap.Error(err))
		}
	})
	rt.ws.OnConnect(onConnect)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return v.Run(gctx) })
	for _, w := range append(rt.workers, extra...) {
		g.Go(func() error { return w(gctx) })
	}
	g.Go(func() error {
		if err := rt.ws.Connect(gctx); err != nil {
			return fmt.Errorf("connect %s: %w", rt.cfg.WSURL, err)
		}
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err = multierr.Append(ignoreCanceled(err), rt.ws.Close(closeCtx))
	for _, c := range rt.closers {
		err = multierr.Append(err, c())
	}
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
