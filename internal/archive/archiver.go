package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/session"
	"github.com/park285/kata-chess-viewer/pkg/katadto"
)

type Saver interface {
	Save(ctx context.Context, g katadto.ArchivedGame) error
}

// Archiver saves each game the moment a snapshot first shows it finished.
// Saves run on Run's goroutine; when the queue is full the game is dropped
// and logged.
type Archiver struct {
	saver Saver
	queue chan katadto.ArchivedGame
	now   func() time.Time
}

func NewArchiver(saver Saver) *Archiver {
	return &Archiver{saver: saver, queue: make(chan katadto.ArchivedGame, 64), now: time.Now}
}

func (a *Archiver) Observe(_ context.Context, prev, next *session.State) {
	for _, g := range next.Games() {
		if !g.Finished {
			continue
		}
		if prev != nil {
			if old, ok := prev.Game(g.ID); ok && old.Finished {
				continue
			}
		}
		rec := a.record(next, g)
		select {
		case a.queue <- rec:
		default:
			obslog.L().Warn("archive_queue_full", zap.Int("game_id", g.ID))
		}
	}
}

func (a *Archiver) record(st *session.State, g session.Game) katadto.ArchivedGame {
	rec := katadto.ArchivedGame{
		GameID:   g.ID,
		WhiteID:  g.WhiteID,
		BlackID:  g.BlackID,
		Score:    g.Score,
		Result:   scoreToPGN(g.Score),
		FEN:      g.FEN,
		MovesUCI: append([]string(nil), g.Moves...),
		MovesSAN: ReplaySAN(g.Moves),
		EndedAt:  a.now().UTC(),
	}
	if p, ok := st.Player(g.WhiteID); ok {
		rec.WhiteName = p.Name
	}
	if p, ok := st.Player(g.BlackID); ok {
		rec.BlackName = p.Name
	}
	rec.PGN = buildPGN(rec.WhiteName, rec.BlackName, rec.EndedAt, rec.MovesSAN, rec.Result)
	return rec
}

// Run saves queued games until ctx is done.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-a.queue:
			saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := a.saver.Save(saveCtx, rec)
			cancel()
			if err != nil {
				obslog.L().Warn("archive_save_failed", zap.Int("game_id", rec.GameID), zap.Error(err))
				continue
			}
			obslog.L().Info("archive_saved", zap.Int("game_id", rec.GameID), zap.String("result", rec.Result))
		}
	}
}
