package autoplay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/oracle"
	"github.com/park285/kata-chess-viewer/internal/protocol"
	"github.com/park285/kata-chess-viewer/internal/session"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w"

type stubOracle struct{}

func (stubOracle) LegalMoves(string) ([]string, error)      { return []string{"e2e4"}, nil }
func (stubOracle) ApplyMove(fen, _ string) (string, error) { return fen, nil }

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) Send(_ context.Context, intents ...protocol.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range intents {
		r.sent = append(r.sent, in.Encode())
	}
	return nil
}

func (r *recordingSender) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

type fixedChooser struct{ calls int }

func (f *fixedChooser) Choose(context.Context, string) (Choice, error) {
	f.calls++
	return Choice{Move: "e2e4", Eval: 3, Depth: 1}, nil
}

func stateFor(t *testing.T, raw string) *session.State {
	t.Helper()
	s, _, err := session.Fold(session.Empty(), raw, stubOracle{})
	require.NoError(t, err)
	return s
}

func TestMaterialPrefersCapture(t *testing.T) {
	m := Material{Oracle: oracle.NewEngine()}
	c, err := m.Choose(context.Background(), "k7/8/8/3q4/4P3/8/8/K7 w")
	require.NoError(t, err)
	assert.Equal(t, "e4d5", c.Move)
	assert.Equal(t, 3, c.Eval)
	assert.Equal(t, 1, c.Depth)
}

func TestMaterialWithoutMoves(t *testing.T) {
	m := Material{Oracle: oracle.NewEngine()}
	_, err := m.Choose(context.Background(), "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	assert.ErrorIs(t, err, ErrNoMoves)
}

func TestEvaluate(t *testing.T) {
	board, _, err := notation.ParsePlacement(startFEN)
	require.NoError(t, err)
	assert.Equal(t, 0, Evaluate(board, notation.White))

	board, _, err = notation.ParsePlacement("4k3/8/8/8/3Q4/8/8/4K3 w")
	require.NoError(t, err)
	assert.Equal(t, 11, Evaluate(board, notation.White))
	assert.Equal(t, -11, Evaluate(board, notation.Black))
}

func TestBotAnswersEachTurnOnce(t *testing.T) {
	sender := &recordingSender{}
	chooser := &fixedChooser{}
	bot := New(chooser, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bot.Run(ctx) }()

	st := stateFor(t, "player 1,-,a,0,0,0,5,0\nplayer 2,-,b,0,0,0,5,0\nplayerid 1\ngame 5,1,2,"+startFEN+",,0")
	bot.Observe(ctx, session.Empty(), st)
	bot.Observe(ctx, st, st)

	require.Eventually(t, func() bool { return len(sender.lines()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"move e2e4", "info depth 1`eval 3`"}, sender.lines())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, sender.lines(), 2)
}

func TestBotIgnoresOpponentTurnAndInactiveGames(t *testing.T) {
	sender := &recordingSender{}
	bot := New(&fixedChooser{}, sender)

	// black to move, we are white
	st := stateFor(t, "player 1,-,a,0,0,0,5,0\nplayer 2,-,b,0,0,0,5,0\nplayerid 1\ngame 5,1,2,"+startFEN[:len(startFEN)-1]+"b,,0")
	bot.Observe(context.Background(), nil, st)
	// our turn, but game 6 is not at the head of black's queue
	st = stateFor(t, "player 1,-,a,0,0,0,6,0\nplayer 2,-,b,0,0,0,5 6,0\nplayerid 1\ngame 6,1,2,"+startFEN+",,0")
	bot.Observe(context.Background(), nil, st)
	// nobody logged in
	st = stateFor(t, "player 1,-,a,0,0,0,5,0\nplayer 2,-,b,0,0,0,5,0\ngame 5,1,2,"+startFEN+",,0")
	bot.Observe(context.Background(), nil, st)

	assert.Len(t, bot.jobs, 0)
}

func TestBotForgetsFinishedGames(t *testing.T) {
	bot := New(&fixedChooser{}, &recordingSender{})
	ctx := context.Background()
	players := "player 1,-,a,0,0,0,5,0\nplayer 2,-,b,0,0,0,5,0\nplayerid 1\n"

	st := stateFor(t, players+"game 5,1,2,"+startFEN+",,0")
	bot.Observe(ctx, nil, st)
	bot.Observe(ctx, st, st)
	require.Len(t, bot.answered, 1)

	finished := stateFor(t, players+"game 5,1,2,"+startFEN+",,1,0")
	bot.Observe(ctx, st, finished)
	assert.Empty(t, bot.answered)
	assert.Len(t, bot.jobs, 1)
}

func TestBotAnswersPositionPrompts(t *testing.T) {
	bot := New(&fixedChooser{}, &recordingSender{})
	bot.HandlePosition(context.Background(), startFEN+" KQkq - 0 1")
	bot.HandlePosition(context.Background(), startFEN+" KQkq - 0 1")
	require.Len(t, bot.jobs, 1)
	j := <-bot.jobs
	assert.Equal(t, noGame, j.gameID)

	bot.HandlePosition(context.Background(), "8/8/8/8/8/8/8/K6k w - - 0 1")
	assert.Len(t, bot.jobs, 1)
	assert.Len(t, bot.answered, 1)
}
