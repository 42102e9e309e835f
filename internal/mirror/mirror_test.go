package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/kata-chess-viewer/internal/session"
	"github.com/park285/kata-chess-viewer/pkg/katadto"
)

type noMoves struct{}

func (noMoves) LegalMoves(string) ([]string, error)     { return nil, nil }
func (noMoves) ApplyMove(fen, _ string) (string, error) { return fen, nil }

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := Dial(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func fold(t *testing.T, s *session.State, raw string) *session.State {
	t.Helper()
	next, _, err := session.Fold(s, raw, noMoves{})
	require.NoError(t, err)
	return next
}

func TestPublishWritesRecordsWithoutKeys(t *testing.T) {
	store, mr := newStore(t)
	st := fold(t, session.Empty(), "player 1,SECRET,alice,1,0,0,4,0\nplayer 2,-,bob,0,1,0,4,0\ngame 4,1,2,8/8/8/8/8/8/8/8 w,e2e4,0")

	require.NoError(t, store.Publish(context.Background(), st))

	raw, err := mr.Get("kata:player:1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "SECRET")
	var p katadto.Player
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, "alice", p.Name)

	raw, err = mr.Get("kata:game:4")
	require.NoError(t, err)
	var g katadto.Game
	require.NoError(t, json.Unmarshal([]byte(raw), &g))
	assert.True(t, g.Active)
	assert.Equal(t, "White To Move", g.Status)
	assert.Equal(t, []string{"e2e4"}, g.Moves)

	members, err := mr.Members("kata:games:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, members)
	members, err = mr.Members("kata:players")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, members)
	assert.Equal(t, ttlRecord, mr.TTL("kata:game:4"))
}

func TestPublishSkipsUnchangedRecords(t *testing.T) {
	store, mr := newStore(t)
	st := fold(t, session.Empty(), "player 1,-,alice,0,0,0,,0")
	require.NoError(t, store.Publish(context.Background(), st))

	mr.Del("kata:player:1")
	require.NoError(t, store.Publish(context.Background(), st))
	assert.False(t, mr.Exists("kata:player:1"))

	st = fold(t, st, "player 1,-,alice,1,0,0,,0")
	require.NoError(t, store.Publish(context.Background(), st))
	assert.True(t, mr.Exists("kata:player:1"))
}

func TestFinishedGameLeavesActiveSet(t *testing.T) {
	store, mr := newStore(t)
	st := fold(t, session.Empty(), "player 1,-,a,0,0,0,4,0\nplayer 2,-,b,0,0,0,4,0\ngame 4,1,2,8/8/8/8/8/8/8/8 w,,0")
	require.NoError(t, store.Publish(context.Background(), st))
	require.True(t, mr.Exists("kata:games:active"))

	st = fold(t, st, "game 4,1,2,8/8/8/8/8/8/8/8 w,,1,1")
	require.NoError(t, store.Publish(context.Background(), st))
	assert.False(t, mr.Exists("kata:games:active"))

	raw, err := mr.Get("kata:game:4")
	require.NoError(t, err)
	var g katadto.Game
	require.NoError(t, json.Unmarshal([]byte(raw), &g))
	assert.Equal(t, "1 - 0", g.Result)
	assert.Equal(t, "Finished", g.Status)
}

func TestObserveHandsLatestSnapshotToRun(t *testing.T) {
	store, mr := newStore(t)
	first := fold(t, session.Empty(), "player 1,-,alice,0,0,0,,0")
	second := fold(t, first, "player 2,-,bob,0,0,0,,0")

	// no worker yet: Observe must not block, and only the newest snapshot is kept
	store.Observe(context.Background(), nil, first)
	store.Observe(context.Background(), first, second)
	assert.False(t, mr.Exists("kata:player:1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx) }()

	require.Eventually(t, func() bool { return mr.Exists("kata:player:2") }, time.Second, 5*time.Millisecond)
	assert.True(t, mr.Exists("kata:player:1"))

	third := fold(t, second, "player 3,-,carol,0,0,0,,0")
	store.Observe(context.Background(), second, third)
	require.Eventually(t, func() bool { return mr.Exists("kata:player:3") }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDialRejectsBadURL(t *testing.T) {
	_, err := Dial(context.Background(), "not-a-url")
	assert.Error(t, err)

	_, err = Dial(context.Background(), "redis://127.0.0.1:1/0")
	assert.Error(t, err)
}
