package oracle

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrBadFEN      = errors.New("bad fen")
	ErrIllegalMove = errors.New("illegal move")
)

// Oracle is the rule authority: it lists legal moves and applies them.
// Both methods are synchronous.
type Oracle interface {
	LegalMoves(fen string) ([]string, error)
	ApplyMove(fen, move string) (string, error)
}

// Engine implements Oracle on top of corentings/chess.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// LegalMoves returns the sorted coordinate moves playable from fen.
// A mate or stalemate yields an empty slice.
func (e *Engine) LegalMoves(fen string) ([]string, error) {
	game, err := load(fen)
	if err != nil {
		return nil, err
	}
	pos := game.Position()
	valid := game.ValidMoves()
	out := make([]string, 0, len(valid))
	uci := nchess.UCINotation{}
	for i := range valid {
		out = append(out, strings.ToLower(uci.Encode(pos, &valid[i])))
	}
	sort.Strings(out)
	return out, nil
}

// ApplyMove plays a coordinate move and returns the resulting full FEN.
func (e *Engine) ApplyMove(fen, move string) (string, error) {
	game, err := load(fen)
	if err != nil {
		return "", err
	}
	mv, err := nchess.UCINotation{}.Decode(game.Position(), strings.ToLower(strings.TrimSpace(move)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrIllegalMove, move, err)
	}
	if err := game.Move(mv, nil); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrIllegalMove, move, err)
	}
	return game.FEN(), nil
}

// Normalize pads a placement/turn FEN with empty castling, en passant and clock fields.
func Normalize(fen string) (string, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return "", fmt.Errorf("%w: %q", ErrBadFEN, fen)
	}
	defaults := []string{"", "", "-", "-", "0", "1"}
	for len(fields) < len(defaults) {
		fields = append(fields, defaults[len(fields)])
	}
	return strings.Join(fields[:6], " "), nil
}

func load(fen string) (*nchess.Game, error) {
	full, err := Normalize(fen)
	if err != nil {
		return nil, err
	}
	opt, err := nchess.FEN(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	return nchess.NewGame(opt), nil
}
