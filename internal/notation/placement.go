package notation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadPlacement is returned for placement strings that do not describe an 8x8 board.
var ErrBadPlacement = errors.New("bad placement")

// Player identifies a side. White is player 0, Black is player 1.
type Player int

const (
	White Player = 0
	Black Player = 1
)

func (p Player) Other() Player {
	if p == White {
		return Black
	}
	return White
}

func (p Player) String() string {
	if p == White {
		return "white"
	}
	return "black"
}

// Board holds placement characters indexed [rank][file]; rank 0 is rank "1".
// Zero means an empty square.
type Board [8][8]byte

func (b *Board) At(sq Square) byte {
	if !sq.Valid() {
		return 0
	}
	return b[sq.Rank][sq.File]
}

func (b *Board) Set(sq Square, piece byte) {
	if sq.Valid() {
		b[sq.Rank][sq.File] = piece
	}
}

// OwnedBy reports whether sq holds one of p's pieces.
func (b *Board) OwnedBy(sq Square, p Player) bool {
	owner, ok := Owner(b.At(sq))
	return ok && owner == p
}

// Placement serializes the board back to the first FEN field.
func (b *Board) Placement() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			c := b[rank][file]
			if c == 0 {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(c)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// ParsePlacement reads the placement and turn fields of a FEN string.
// A turn of "w" is White; anything else, including a missing field, is Black.
// Castling rights, en passant and clocks are ignored.
func ParsePlacement(fen string) (Board, Player, error) {
	var board Board
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return board, White, fmt.Errorf("%w: empty", ErrBadPlacement)
	}
	rows := strings.Split(fields[0], "/")
	if len(rows) != 8 {
		return board, White, fmt.Errorf("%w: %d rows", ErrBadPlacement, len(rows))
	}
	for i, row := range rows {
		rank := 7 - i
		file := 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				if file > 8 {
					return board, White, fmt.Errorf("%w: row %q overflows", ErrBadPlacement, row)
				}
				continue
			}
			if file >= 8 {
				return board, White, fmt.Errorf("%w: row %q overflows", ErrBadPlacement, row)
			}
			board[rank][file] = c
			file++
		}
	}
	return board, turnOf(fields), nil
}

// Turn extracts the player to move without parsing the placement.
func Turn(fen string) Player {
	return turnOf(strings.Fields(fen))
}

func turnOf(fields []string) Player {
	if len(fields) > 1 && fields[1] == "w" {
		return White
	}
	return Black
}

// Owner reports which player a placement character belongs to.
// Upper case is White, lower case is Black; anything else is nobody's.
func Owner(piece byte) (Player, bool) {
	switch {
	case piece >= 'A' && piece <= 'Z':
		return White, true
	case piece >= 'a' && piece <= 'z':
		return Black, true
	default:
		return White, false
	}
}

// PromotionPiece cases an engine-supplied promotion letter for p.
func PromotionPiece(letter byte, p Player) byte {
	if p == White {
		if letter >= 'a' && letter <= 'z' {
			return letter - 'a' + 'A'
		}
		return letter
	}
	if letter >= 'A' && letter <= 'Z' {
		return letter - 'A' + 'a'
	}
	return letter
}
