package present

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/notify"
	"github.com/park285/kata-chess-viewer/internal/selection"
	"github.com/park285/kata-chess-viewer/internal/session"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w"

type fixedOracle struct{}

func (fixedOracle) LegalMoves(string) ([]string, error)     { return []string{"e2e3", "e2e4"}, nil }
func (fixedOracle) ApplyMove(fen, _ string) (string, error) { return fen, nil }

func fold(t *testing.T, raw string) *session.State {
	t.Helper()
	st, _, err := session.Fold(session.Empty(), raw, fixedOracle{})
	require.NoError(t, err)
	return st
}

func TestPlayersTable(t *testing.T) {
	f := NewFormatter(nil)
	assert.Equal(t, "No players yet.", f.Players(session.Empty()))

	st := fold(t, "player 2,-,bob,0,1,2,,0\nplayer 1,-,alice,3,0,0,,0\nplayerid 2")
	assert.Equal(t, "Players\n  alice  3-0-0\n* bob  0-1-2", f.Players(st))
}

func TestGamesSidebar(t *testing.T) {
	st := fold(t, strings.Join([]string{
		"player 1,-,alice,0,0,0,3,0",
		"player 2,-,bob,0,0,0,3,0",
		"game 2,1,2," + startFEN + ",,1,-1",
		"game 3,1,2," + startFEN + ",,0",
		"game 4,2,9," + startFEN + ",,0",
	}, "\n"))

	assert.Equal(t, strings.Join([]string{
		"Games",
		"#4  bob vs #9  Not Started",
		"#3  alice vs bob  White To Move",
		"#2  alice vs bob  Score: 0 - 1",
	}, "\n"), NewFormatter(nil).Games(st))

	lines := strings.Split(NewFormatter(nil, WithTournamentOrder(true)).Games(st), "\n")
	assert.Equal(t, []string{"#3", "#2", "#4"}, []string{lines[1][:2], lines[2][:2], lines[3][:2]})
}

func TestSessionLine(t *testing.T) {
	f := NewFormatter(nil)
	assert.Equal(t, "Spectating", f.Session(session.Empty(), ""))
	st := fold(t, "player 1,K,alice,0,0,0,,0\nplayerid 1")
	assert.Equal(t, "API Key: K  |  Playing as alice (#1)", f.Session(st, "K"))
}

func TestGameDetail(t *testing.T) {
	st := fold(t, "player 1,-,alice,0,0,0,3,0\nplayer 2,-,bob,0,0,0,3,0\nplayerid 2\n"+
		"game 3,1,2,"+startFEN+",e2e4 e7e5 g1f3,0,0,eval 12`depth 1`,")
	out := NewFormatter(nil).Game(st, 3, selection.IdleState())

	assert.Contains(t, out, "Game #3: alice vs bob (Current Player)")
	assert.Contains(t, out, "Status: White To Move")
	assert.Contains(t, out, "1. e2e4 e7e5\n2. g1f3")
	assert.Contains(t, out, "white (alice) client data\n  depth  1\n")
	assert.NotContains(t, out, "black (bob) client data")
	assert.Contains(t, out, "Eval 12 .. 12\n  white  ▄  last 12")

	// black's view: rank 1 on top, files h..a
	lines := strings.Split(out, "\n")
	assert.Equal(t, "1  R 'N' B  K  Q  B  N  R ", lines[3])

	assert.Equal(t, "Unknown game #8.", NewFormatter(nil).Game(st, 8, selection.IdleState()))
}

func TestGameShowsSeatKeys(t *testing.T) {
	st := fold(t, "player 1,K1,alice,0,0,0,3,0\nplayer 2,K2,bob,0,0,0,3,0\nplayer 4,-,carol,0,0,0,,0\nplayerid 1\n"+
		"game 3,1,2,"+startFEN+",,0\ngame 5,4,2,"+startFEN+",,0")
	f := NewFormatter(nil)

	out := f.Game(st, 3, selection.IdleState())
	assert.Contains(t, out, "Game #3: alice (Current Player) [API Key: K1] vs bob [API Key: K2]")

	out = f.Game(st, 5, selection.IdleState())
	assert.Contains(t, out, "Game #5: carol vs bob [API Key: K2]")
}

func TestEvalTrace(t *testing.T) {
	blackToMove := strings.TrimSuffix(startFEN, "w") + "b"
	st := fold(t, "player 1,-,alice,0,0,0,3,0\nplayer 2,-,bob,0,0,0,3,0\n"+
		"game 3,1,2,"+blackToMove+",,0,0,eval 0 1 2 3`depth 4,eval 0 -1 -2 -3`depth 4")
	out := NewFormatter(nil).Game(st, 3, selection.IdleState())

	assert.Contains(t, out, "Eval -2 .. 3\n  white  ▄▅▇█  last 3\n  black  ▄▂▁  last -2")
	assert.Contains(t, out, "white (alice) client data\n  depth  4\n")
	assert.NotContains(t, out, "0 1 2 3")

	g, _ := st.Game(3)
	g.FEN = startFEN
	g.Finished = true
	trace := GameEvalTrace(g)
	assert.Equal(t, []float64{0, 1, 2}, trace.White)
	assert.Equal(t, []float64{0, -1, -2}, trace.Black)

	g.Finished = false
	trace = GameEvalTrace(g)
	assert.Len(t, trace.White, 4)
	assert.Len(t, trace.Black, 4)
}

func TestParseEvalSeriesAndSparkline(t *testing.T) {
	assert.Equal(t, []float64{1.5, -2, 30}, ParseEvalSeries(" 1.5 x -2  NaN 30 "))
	assert.Empty(t, ParseEvalSeries(""))
	assert.Equal(t, "▁█", Sparkline([]float64{0, 10}, 0, 10))
	assert.Equal(t, "▄▄", Sparkline([]float64{5, 5}, 5, 5))
	assert.True(t, EvalTrace{}.Empty())
}

func TestBoardMarksSelectionAndHints(t *testing.T) {
	st := fold(t, "playerid 1\ngame 3,1,2,"+startFEN+",,0")
	v, err := st.View(3)
	require.NoError(t, err)

	sel, _ := selection.Click(selection.IdleState(), v, notation.Square{File: 4, Rank: 1})
	require.Equal(t, selection.Selected, sel.Kind)
	lines := strings.Split(Board(v, sel), "\n")

	assert.Equal(t, "2  P  P  P  P [P] P  P  P ", lines[6])
	assert.Equal(t, "3  .  .  .  .  *  .  .  . ", lines[5])
	assert.Equal(t, "4  .  .  .  .  *  .  .  . ", lines[4])
	assert.Equal(t, "   a  b  c  d  e  f  g  h ", lines[8])
}

func TestBoardShowsPromotionChoices(t *testing.T) {
	v := session.BoardView{
		Turn:       notation.White,
		AllowMoves: [2]bool{true, false},
	}
	v.Board.Set(notation.Square{File: 0, Rank: 6}, 'P')
	v.Legal = notation.ParseMoves([]string{"a7a8q", "a7a8n"})

	sel, _ := selection.Click(selection.IdleState(), v, notation.Square{File: 0, Rank: 6})
	sel, mv := selection.Click(sel, v, notation.Square{File: 0, Rank: 7})
	require.Nil(t, mv)
	require.Equal(t, selection.PendingPromotion, sel.Kind)

	lines := strings.Split(Board(v, sel), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "8 <Q>"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "7 <N>"), lines[1])
}

func TestNoticeAndHelpers(t *testing.T) {
	f := NewFormatter(nil)
	assert.Equal(t, "Server error: bad move", f.Notice(notify.ServerError("bad move")))
	assert.Equal(t, []string{"1. a b", "2. c"}, MovePairs([]string{"a", "b", "c"}))
	assert.Empty(t, MovePairs(nil))
}
