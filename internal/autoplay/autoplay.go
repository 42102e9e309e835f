package autoplay

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/protocol"
	"github.com/park285/kata-chess-viewer/internal/session"
	"github.com/park285/kata-chess-viewer/internal/transport"
)

// noGame marks jobs that came from a bare position prompt.
const noGame = -1

type job struct {
	gameID int
	fen    string
}

// Bot moves for the logged-in player. Snapshots and position prompts arrive
// on the fold goroutine; answers are computed and sent from Run.
//
// Wire it either as an observer or as a position handler, not both. The two
// sources describe the same turn with differently shaped FENs. A turn is
// answered once: only the last queued FEN of each game is remembered.
type Bot struct {
	chooser Chooser
	sender  transport.Sender

	jobs chan job

	// last fen queued per game; position prompts share the noGame slot
	mu       sync.Mutex
	answered map[int]string
}

func New(chooser Chooser, sender transport.Sender) *Bot {
	return &Bot{
		chooser:  chooser,
		sender:   sender,
		jobs:     make(chan job, 32),
		answered: make(map[int]string),
	}
}

// Observe queues every active game where the current player is to move and
// forgets games that are no longer active.
func (b *Bot) Observe(ctx context.Context, _, next *session.State) {
	b.forgetInactive(next)
	cur, ok := next.CurPlayerID()
	if !ok {
		return
	}
	for _, g := range next.Games() {
		if !next.GameIsActive(g.ID) {
			continue
		}
		if g.Seat(int(notation.Turn(g.FEN))) != cur {
			continue
		}
		b.enqueue(ctx, job{gameID: g.ID, fen: g.FEN})
	}
}

func (b *Bot) forgetInactive(st *session.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.answered {
		if id != noGame && !st.GameIsActive(id) {
			delete(b.answered, id)
		}
	}
}

// HandlePosition queues a server prompt.
func (b *Bot) HandlePosition(ctx context.Context, fen string) {
	b.enqueue(ctx, job{gameID: noGame, fen: fen})
}

func (b *Bot) enqueue(ctx context.Context, j job) {
	b.mu.Lock()
	if fen, seen := b.answered[j.gameID]; seen && fen == j.fen {
		b.mu.Unlock()
		return
	}
	b.answered[j.gameID] = j.fen
	b.mu.Unlock()

	select {
	case b.jobs <- j:
	case <-ctx.Done():
	}
}

// Run answers queued positions until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-b.jobs:
			b.play(ctx, j)
		}
	}
}

func (b *Bot) play(ctx context.Context, j job) {
	logger := obslog.L().With(zap.Int("game_id", j.gameID), zap.String("fen", j.fen))
	choice, err := b.chooser.Choose(ctx, j.fen)
	if err != nil {
		logger.Warn("autoplay_choose_failed", zap.Error(err))
		return
	}
	info := protocol.Info{Data: map[string]string{
		"eval":  strconv.Itoa(choice.Eval),
		"depth": strconv.Itoa(choice.Depth),
	}}
	if err := b.sender.Send(ctx, protocol.Move{Move: choice.Move}, info); err != nil {
		logger.Warn("autoplay_send_failed", zap.Error(err))
		return
	}
	logger.Info("autoplay_move", zap.String("move", choice.Move), zap.Int("eval", choice.Eval))
}
