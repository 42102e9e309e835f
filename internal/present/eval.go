package present

import (
	"math"
	"strconv"
	"strings"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/session"
)

// evalKey is the client data key engines report their evaluation history
// under, one space-separated number per move.
const evalKey = "eval"

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// EvalTrace is the per-side evaluation history of one game.
type EvalTrace struct {
	White []float64
	Black []float64
}

func (e EvalTrace) Empty() bool { return len(e.White) == 0 && len(e.Black) == 0 }

// Bounds is the shared min and max of both series.
func (e EvalTrace) Bounds() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, series := range [][]float64{e.White, e.Black} {
		for _, v := range series {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	return lo, hi
}

// ParseEvalSeries reads space-separated numbers; tokens that do not parse
// are skipped.
func ParseEvalSeries(raw string) []float64 {
	var out []float64
	for _, tok := range strings.Fields(raw) {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// GameEvalTrace collects the points worth plotting for g. Black's newest
// point is held back while black is to move, and both sides drop their last
// point once the game is finished.
func GameEvalTrace(g session.Game) EvalTrace {
	white := ParseEvalSeries(g.ClientData[notation.White][evalKey])
	black := ParseEvalSeries(g.ClientData[notation.Black][evalKey])
	turns := max(len(white), len(black))

	skipWhite, skipBlack := 0, 0
	if g.Finished {
		skipWhite, skipBlack = 1, 1
	}
	if notation.Turn(g.FEN) == notation.Black {
		skipBlack = 1
	}
	return EvalTrace{
		White: white[:clamp(turns-skipWhite, 0, len(white))],
		Black: black[:clamp(turns-skipBlack, 0, len(black))],
	}
}

// Sparkline maps values onto eight block heights between lo and hi.
func Sparkline(values []float64, lo, hi float64) string {
	var sb strings.Builder
	top := len(sparkLevels) - 1
	for _, v := range values {
		level := top / 2
		if hi > lo {
			level = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		sb.WriteRune(sparkLevels[clamp(level, 0, top)])
	}
	return sb.String()
}

func (f *Formatter) evalTrace(e EvalTrace) string {
	lo, hi := e.Bounds()
	lines := []string{f.cat.Text("game.eval_header", map[string]any{"Min": formatEval(lo), "Max": formatEval(hi)})}
	for side, series := range [][]float64{e.White, e.Black} {
		if len(series) == 0 {
			continue
		}
		lines = append(lines, f.cat.Text("game.eval_row", map[string]any{
			"Side":  notation.Player(side).String(),
			"Spark": Sparkline(series, lo, hi),
			"Last":  formatEval(series[len(series)-1]),
		}))
	}
	return strings.Join(lines, "\n")
}

func formatEval(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func clamp(v, lo, hi int) int { return min(max(v, lo), hi) }
