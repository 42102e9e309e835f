package selection

import (
	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/session"
)

type Kind int

const (
	Idle Kind = iota
	Selected
	PendingPromotion
)

func (k Kind) String() string {
	switch k {
	case Selected:
		return "selected"
	case PendingPromotion:
		return "pending_promotion"
	default:
		return "idle"
	}
}

// Promotion lists the candidate pieces for an ambiguous move to Dst and the
// squares they are displayed on, index for index.
type Promotion struct {
	Dst     notation.Square
	Pieces  []byte
	Squares []notation.Square
}

// State is the interaction state of one board. Src is meaningful in Selected
// and PendingPromotion; Promotion only in PendingPromotion.
type State struct {
	Kind      Kind
	Src       notation.Square
	Promotion *Promotion
}

func IdleState() State { return State{Kind: Idle} }

// Click advances st for a click on sq. When the click completes a move the
// move is returned and the state goes back to Idle. Clicks are ignored while
// the viewer may not act for the side to move.
func Click(st State, v session.BoardView, sq notation.Square) (State, *notation.ParsedMove) {
	if !v.CanAct() || !sq.Valid() {
		return st, nil
	}
	if st.Kind == PendingPromotion && st.Promotion != nil {
		for i, disp := range st.Promotion.Squares {
			if disp == sq {
				mv := notation.ParsedMove{Src: st.Src, Dst: st.Promotion.Dst, Promotion: st.Promotion.Pieces[i]}
				return IdleState(), &mv
			}
		}
		// any other click cancels the promotion and is handled from Idle
		st = IdleState()
	}

	if v.Board.OwnedBy(sq, v.Turn) {
		if st.Kind == Selected && st.Src == sq {
			return IdleState(), nil
		}
		return State{Kind: Selected, Src: sq}, nil
	}
	if st.Kind != Selected {
		return IdleState(), nil
	}

	candidates := movesBetween(v.Legal, st.Src, sq)
	switch len(candidates) {
	case 0:
		return IdleState(), nil
	case 1:
		mv := candidates[0]
		return IdleState(), &mv
	default:
		return State{Kind: PendingPromotion, Src: st.Src, Promotion: stack(sq, candidates)}, nil
	}
}

// stack places one display square per candidate, growing from dst toward the
// board centre so the column stays on the board.
func stack(dst notation.Square, candidates []notation.ParsedMove) *Promotion {
	p := &Promotion{
		Dst:     dst,
		Pieces:  make([]byte, len(candidates)),
		Squares: make([]notation.Square, len(candidates)),
	}
	for i, c := range candidates {
		p.Pieces[i] = c.Promotion
		rank := dst.Rank + i
		if dst.Rank >= 4 {
			rank = dst.Rank - i
		}
		p.Squares[i] = notation.Square{File: dst.File, Rank: rank}
	}
	return p
}

func movesBetween(legal []notation.ParsedMove, src, dst notation.Square) []notation.ParsedMove {
	var out []notation.ParsedMove
	for _, m := range legal {
		if m.Src == src && m.Dst == dst {
			out = append(out, m)
		}
	}
	return out
}

// Hints returns the distinct destinations reachable from the selected square.
func Hints(st State, v session.BoardView) []notation.Square {
	if st.Kind != Selected {
		return nil
	}
	seen := make(map[notation.Square]bool)
	var out []notation.Square
	for _, m := range v.Legal {
		if m.Src != st.Src || seen[m.Dst] {
			continue
		}
		seen[m.Dst] = true
		out = append(out, m.Dst)
	}
	return out
}

// DisplayPieces returns the promotion pieces cased for the side to move.
func DisplayPieces(st State, v session.BoardView) []byte {
	if st.Kind != PendingPromotion || st.Promotion == nil {
		return nil
	}
	out := make([]byte, len(st.Promotion.Pieces))
	for i, p := range st.Promotion.Pieces {
		out[i] = notation.PromotionPiece(p, v.Turn)
	}
	return out
}
