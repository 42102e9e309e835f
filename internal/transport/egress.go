package transport

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/protocol"
)

// Sender delivers client intents to the server.
type Sender interface {
	Send(ctx context.Context, intents ...protocol.Intent) error
}

// NewEgress returns ws itself, or a logging stand-in when dryrun is set.
func NewEgress(ws *WebSocket, dryrun bool, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dryrun {
		return &dryRunEgress{logger: logger}
	}
	return &loggedEgress{next: ws, logger: logger}
}

type loggedEgress struct {
	next   Sender
	logger *zap.Logger
}

func (l *loggedEgress) Send(ctx context.Context, intents ...protocol.Intent) error {
	err := l.next.Send(ctx, intents...)
	for _, in := range intents {
		l.logger.Debug("ws_egress", zap.String("line", redact(in)), zap.Error(err))
	}
	return err
}

type dryRunEgress struct {
	logger *zap.Logger
}

func (d *dryRunEgress) Send(_ context.Context, intents ...protocol.Intent) error {
	for _, in := range intents {
		d.logger.Info("ws_egress_dryrun", zap.String("line", redact(in)))
	}
	return nil
}

// redact hides api keys in logs.
func redact(in protocol.Intent) string {
	if _, ok := in.(protocol.APIKey); ok {
		return "apikey ***"
	}
	return in.Encode()
}
