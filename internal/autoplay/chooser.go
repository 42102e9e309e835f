package autoplay

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/oracle"
	"github.com/park285/kata-chess-viewer/internal/uci"
)

var ErrNoMoves = errors.New("no legal moves")

// Choice is a move plus the debug info sent with it.
type Choice struct {
	Move  string
	Eval  int
	Depth int
}

type Chooser interface {
	Choose(ctx context.Context, fen string) (Choice, error)
}

// Material picks the legal move with the best material and centre balance
// one ply ahead, from the mover's point of view. Ties go to the first move in
// the oracle's order.
type Material struct {
	Oracle oracle.Oracle
}

var pieceValue = map[byte]int{'p': 1, 'n': 3, 'b': 3, 'r': 5, 'q': 9}

func (m Material) Choose(ctx context.Context, fen string) (Choice, error) {
	moves, err := m.Oracle.LegalMoves(fen)
	if err != nil {
		return Choice{}, err
	}
	if len(moves) == 0 {
		return Choice{}, ErrNoMoves
	}
	mover := notation.Turn(fen)

	best := Choice{Depth: 1}
	found := false
	for _, mv := range moves {
		if err := ctx.Err(); err != nil {
			return Choice{}, err
		}
		after, err := m.Oracle.ApplyMove(fen, mv)
		if err != nil {
			continue
		}
		board, _, err := notation.ParsePlacement(after)
		if err != nil {
			continue
		}
		score := Evaluate(board, mover)
		if !found || score > best.Eval {
			best.Move, best.Eval, found = mv, score, true
		}
	}
	if !found {
		return Choice{}, fmt.Errorf("%w: every candidate failed to apply", ErrNoMoves)
	}
	return best, nil
}

// Evaluate scores a board for p: material plus two points per piece on the
// four centre squares.
func Evaluate(b notation.Board, p notation.Player) int {
	score := 0
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			piece := b[rank][file]
			owner, ok := notation.Owner(piece)
			if !ok {
				continue
			}
			v := pieceValue[piece|0x20]
			if (rank == 3 || rank == 4) && (file == 3 || file == 4) {
				v += 2
			}
			if owner != p {
				v = -v
			}
			score += v
		}
	}
	return score
}

// Engine asks an external UCI engine.
type Engine struct {
	Session *uci.Session
	Limits  uci.Limits
}

func (e Engine) Choose(ctx context.Context, fen string) (Choice, error) {
	full, err := oracle.Normalize(fen)
	if err != nil {
		return Choice{}, err
	}
	res, err := e.Session.Search(ctx, full, e.Limits)
	if err != nil {
		return Choice{}, err
	}
	return Choice{Move: res.BestMove, Eval: res.EvalCP, Depth: res.Depth}, nil
}
