package present

import (
	"strings"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/selection"
	"github.com/park285/kata-chess-viewer/internal/session"
)

// Board draws v as text, one three-character cell per square. The selected
// piece is bracketed, reachable squares carry a '*', and pending promotion
// choices replace the squares they are shown on.
func Board(v session.BoardView, sel selection.State) string {
	hints := make(map[notation.Square]bool)
	for _, sq := range selection.Hints(sel, v) {
		hints[sq] = true
	}
	promo := make(map[notation.Square]byte)
	if pieces := selection.DisplayPieces(sel, v); pieces != nil {
		for i, sq := range sel.Promotion.Squares {
			promo[sq] = pieces[i]
		}
	}

	ranks := []int{7, 6, 5, 4, 3, 2, 1, 0}
	files := []int{0, 1, 2, 3, 4, 5, 6, 7}
	if v.Reversed {
		ranks = []int{0, 1, 2, 3, 4, 5, 6, 7}
		files = []int{7, 6, 5, 4, 3, 2, 1, 0}
	}

	var sb strings.Builder
	for _, r := range ranks {
		sb.WriteByte(byte('1' + r))
		sb.WriteByte(' ')
		for _, f := range files {
			sq := notation.Square{File: f, Rank: r}
			sb.WriteString(cell(v, sel, sq, hints[sq], promo))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  ")
	for _, f := range files {
		sb.WriteByte(' ')
		sb.WriteByte(byte('a' + f))
		sb.WriteByte(' ')
	}
	sb.WriteByte('\n')
	return sb.String()
}

func cell(v session.BoardView, sel selection.State, sq notation.Square, hint bool, promo map[notation.Square]byte) string {
	if p, ok := promo[sq]; ok {
		return "<" + string(p) + ">"
	}
	piece := v.Board.At(sq)
	glyph := "."
	if piece != 0 {
		glyph = string(piece)
	}
	switch {
	case sel.Kind != selection.Idle && sel.Src == sq:
		return "[" + glyph + "]"
	case hint && piece != 0:
		return "*" + glyph + "*"
	case hint:
		return " * "
	case v.LastMove != nil && (v.LastMove.Src == sq || v.LastMove.Dst == sq):
		return "'" + glyph + "'"
	default:
		return " " + glyph + " "
	}
}
