package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/session"
	"github.com/park285/kata-chess-viewer/pkg/katadto"
)

const (
	ttlRecord      = 24 * time.Hour
	publishTimeout = 2 * time.Second
)

func keyGame(id int) string   { return "kata:game:" + strconv.Itoa(id) }
func keyPlayer(id int) string { return "kata:player:" + strconv.Itoa(id) }

const (
	keyGames   = "kata:games"
	keyActive  = "kata:games:active"
	keyPlayers = "kata:players"
)

// Store publishes snapshots to Redis. Only records whose JSON changed since
// the last publish are written. Observe only records the newest snapshot;
// Run publishes it, so snapshots that arrive while Redis is slow collapse
// into one write.
type Store struct {
	rdb *redis.Client

	mu   sync.Mutex
	last map[string][]byte

	latestM sync.Mutex
	latest  *session.State
	wake    chan struct{}
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, last: make(map[string][]byte), wake: make(chan struct{}, 1)}
}

// Dial parses a redis:// URL and checks the server answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Observe hands next to Run without blocking.
func (s *Store) Observe(_ context.Context, _, next *session.State) {
	s.latestM.Lock()
	s.latest = next
	s.latestM.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run publishes the newest observed snapshot until ctx is done. Failures are
// logged and retried on the next change.
func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
		s.latestM.Lock()
		st := s.latest
		s.latest = nil
		s.latestM.Unlock()
		if st == nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := s.Publish(pctx, st)
		cancel()
		if err != nil {
			obslog.L().Warn("mirror_publish_failed", zap.Error(err))
		}
	}
}

func (s *Store) Publish(ctx context.Context, st *session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[string][]byte)
	for _, p := range st.Players() {
		raw, err := json.Marshal(PlayerDTO(p))
		if err != nil {
			return err
		}
		s.stage(pending, keyPlayer(p.ID), raw)
	}
	games := st.Games()
	active := make([]any, 0, len(games))
	for _, g := range games {
		dto := GameDTO(st, g)
		if dto.Active {
			active = append(active, g.ID)
		}
		raw, err := json.Marshal(dto)
		if err != nil {
			return err
		}
		s.stage(pending, keyGame(g.ID), raw)
	}
	if len(pending) == 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range st.Players() {
			pipe.SAdd(ctx, keyPlayers, p.ID)
		}
		for _, g := range games {
			pipe.SAdd(ctx, keyGames, g.ID)
		}
		pipe.Del(ctx, keyActive)
		if len(active) > 0 {
			pipe.SAdd(ctx, keyActive, active...)
			pipe.Expire(ctx, keyActive, ttlRecord)
		}
		for key, raw := range pending {
			pipe.Set(ctx, key, raw, ttlRecord)
		}
		pipe.Expire(ctx, keyPlayers, ttlRecord)
		pipe.Expire(ctx, keyGames, ttlRecord)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish %d records: %w", len(pending), err)
	}
	for key, raw := range pending {
		s.last[key] = raw
	}
	return nil
}

func (s *Store) stage(pending map[string][]byte, key string, raw []byte) {
	if prev, ok := s.last[key]; ok && string(prev) == string(raw) {
		return
	}
	pending[key] = raw
}

func PlayerDTO(p session.Player) katadto.Player {
	return katadto.Player{
		ID:           p.ID,
		Name:         p.Name,
		Wins:         p.Wins,
		Losses:       p.Losses,
		Ties:         p.Ties,
		GameIDs:      p.GameIDs,
		CurGameIndex: p.CurGameIndex,
	}
}

func GameDTO(st *session.State, g session.Game) katadto.Game {
	dto := katadto.Game{
		ID:         g.ID,
		WhiteID:    g.WhiteID,
		BlackID:    g.BlackID,
		FEN:        g.FEN,
		Moves:      g.Moves,
		Finished:   g.Finished,
		Score:      g.Score,
		Status:     st.GameStatus(g.ID).String(),
		Active:     st.GameIsActive(g.ID),
		ClientData: g.ClientData,
	}
	if g.Finished {
		dto.Result = session.ScoreString(g.Score)
	}
	return dto
}
