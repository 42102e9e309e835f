package viewer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/notify"
	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/oracle"
	"github.com/park285/kata-chess-viewer/internal/protocol"
	"github.com/park285/kata-chess-viewer/internal/selection"
	"github.com/park285/kata-chess-viewer/internal/session"
	"github.com/park285/kata-chess-viewer/internal/transport"
)

var ErrStopped = errors.New("viewer stopped")

// Observer sees every snapshot change, in fold order, from the fold goroutine.
type Observer interface {
	Observe(ctx context.Context, prev, next *session.State)
}

type ObserverFunc func(ctx context.Context, prev, next *session.State)

func (f ObserverFunc) Observe(ctx context.Context, prev, next *session.State) { f(ctx, prev, next) }

// PositionHandler answers the server's "position" prompt.
type PositionHandler interface {
	HandlePosition(ctx context.Context, fen string)
}

// Viewer owns the session state. Raw server messages are queued by Deliver
// and folded one at a time by Run; readers get whole-message snapshots.
type Viewer struct {
	oracle    oracle.Oracle
	sender    transport.Sender
	notifier  notify.Notifier
	observers []Observer
	positions []PositionHandler

	inbox chan string
	done  chan struct{}
	stop  sync.Once

	state atomic.Pointer[session.State]

	boardsM sync.Mutex
	boards  map[int]selection.State

	keyM   sync.RWMutex
	apiKey string
}

type Option func(*Viewer)

func WithNotifier(n notify.Notifier) Option {
	return func(v *Viewer) { v.notifier = n }
}

func WithObserver(o Observer) Option {
	return func(v *Viewer) { v.observers = append(v.observers, o) }
}

func WithPositionHandler(h PositionHandler) Option {
	return func(v *Viewer) { v.positions = append(v.positions, h) }
}

func WithInboxSize(n int) Option {
	return func(v *Viewer) {
		if n > 0 {
			v.inbox = make(chan string, n)
		}
	}
}

func New(o oracle.Oracle, sender transport.Sender, opts ...Option) *Viewer {
	v := &Viewer{
		oracle:   o,
		sender:   sender,
		notifier: notify.NewLogNotifier(obslog.L()),
		inbox:    make(chan string, 256),
		done:     make(chan struct{}),
		boards:   make(map[int]selection.State),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.state.Store(session.Empty())
	return v
}

// Deliver queues a raw server message. It blocks while the inbox is full so
// no message is dropped or reordered, and fails once Run has returned.
func (v *Viewer) Deliver(raw string) error {
	select {
	case <-v.done:
		return ErrStopped
	default:
	}
	select {
	case v.inbox <- raw:
		return nil
	case <-v.done:
		return ErrStopped
	}
}

// Run folds queued messages until ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	defer v.stop.Do(func() { close(v.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-v.inbox:
			v.fold(ctx, raw)
		}
	}
}

func (v *Viewer) fold(ctx context.Context, raw string) {
	prev := v.state.Load()
	next, cmds, err := session.Fold(prev, raw, v.oracle)
	v.state.Store(next)
	if err != nil {
		obslog.L().Debug("fold_partial", zap.Int("applied", len(cmds)), zap.Error(err))
	}

	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case protocol.Error:
			if nerr := v.notifier.Notify(ctx, notify.ServerError(c.Message)); nerr != nil {
				obslog.L().Warn("notify_failed", zap.Error(nerr))
			}
		case protocol.Position:
			for _, h := range v.positions {
				h.HandlePosition(ctx, c.FEN)
			}
		}
	}
	if next != prev {
		for _, o := range v.observers {
			o.Observe(ctx, prev, next)
		}
	}
}

// Snapshot returns the state after the last fully folded message.
func (v *Viewer) Snapshot() *session.State { return v.state.Load() }

// Observe asks the server to stream every player and game.
func (v *Viewer) Observe(ctx context.Context) error {
	return v.sender.Send(ctx, protocol.Observe{})
}

// Login presents an api key and asks the server which player it belongs to.
func (v *Viewer) Login(ctx context.Context, key string) error {
	if err := v.sender.Send(ctx, protocol.APIKey{Key: key}, protocol.RequestPlayerID{}); err != nil {
		return err
	}
	v.keyM.Lock()
	v.apiKey = key
	v.keyM.Unlock()
	return nil
}

// CurrentKey is the api key of the last successful Login, or "".
func (v *Viewer) CurrentKey() string {
	v.keyM.RLock()
	defer v.keyM.RUnlock()
	return v.apiKey
}

func (v *Viewer) SetName(ctx context.Context, name string) error {
	return v.sender.Send(ctx, protocol.Name{Name: name})
}

func (v *Viewer) NewGame(ctx context.Context, a, b int) error {
	return v.sender.Send(ctx, protocol.NewGameIntent{A: a, B: b})
}

func (v *Viewer) NewGameAny(ctx context.Context) error {
	return v.sender.Send(ctx, protocol.NewGameAny{})
}

// SendMove sends a move string as-is; the server is the judge of legality.
func (v *Viewer) SendMove(ctx context.Context, move string) error {
	return v.sender.Send(ctx, protocol.Move{Move: move})
}

// Click feeds a board click into that game's selection state and sends the
// move when the click completes one.
func (v *Viewer) Click(ctx context.Context, gameID int, sq notation.Square) (*notation.ParsedMove, error) {
	view, err := v.Snapshot().View(gameID)
	if err != nil {
		return nil, err
	}

	v.boardsM.Lock()
	next, mv := selection.Click(v.boards[gameID], view, sq)
	v.boards[gameID] = next
	v.boardsM.Unlock()

	if mv == nil {
		return nil, nil
	}
	if err := v.SendMove(ctx, mv.String()); err != nil {
		return mv, err
	}
	obslog.L().Info("move_sent", zap.Int("game_id", gameID), zap.String("move", mv.String()))
	return mv, nil
}

// Selection returns the interaction state of one board.
func (v *Viewer) Selection(gameID int) selection.State {
	v.boardsM.Lock()
	defer v.boardsM.Unlock()
	return v.boards[gameID]
}

// ResetSelection puts a board back to Idle.
func (v *Viewer) ResetSelection(gameID int) {
	v.boardsM.Lock()
	defer v.boardsM.Unlock()
	delete(v.boards, gameID)
}
