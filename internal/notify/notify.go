package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notice is a user-visible message, such as an error reported by the server.
type Notice struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const KindServerError = "server_error"

func ServerError(msg string) Notice {
	return Notice{Kind: KindServerError, Message: msg, At: time.Now().UTC()}
}

type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notice) error

func (f Func) Notify(ctx context.Context, n Notice) error { return f(ctx, n) }

// LogNotifier writes notices to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notice) error {
	l.logger.Warn("notice", zap.String("kind", n.Kind), zap.String("message", n.Message))
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) error {
	var errs error
	for _, nt := range m {
		if nt == nil {
			continue
		}
		errs = multierr.Append(errs, nt.Notify(ctx, n))
	}
	return errs
}
