package notation

import (
	"errors"
	"fmt"
)

var ErrBadMove = errors.New("bad move")

// Square is a zero-based (file, rank) pair; a1 is {0, 0}.
type Square struct {
	File int
	Rank int
}

func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File), byte('1' + s.Rank)})
}

func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return Square{}, fmt.Errorf("%w: square %q", ErrBadMove, s)
	}
	sq, ok := squareAt(s, 0)
	if !ok {
		return Square{}, fmt.Errorf("%w: square %q", ErrBadMove, s)
	}
	return sq, nil
}

func squareAt(s string, i int) (Square, bool) {
	f, r := s[i], s[i+1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return Square{}, false
	}
	return Square{File: int(f - 'a'), Rank: int(r - '1')}, true
}

// ParsedMove is a coordinate move. Promotion is zero when absent.
type ParsedMove struct {
	Src       Square
	Dst       Square
	Promotion byte
}

// ParseMove reads "<src><dst>[promo]", e.g. "e2e4" or "e7e8q".
func ParseMove(s string) (ParsedMove, error) {
	if len(s) != 4 && len(s) != 5 {
		return ParsedMove{}, fmt.Errorf("%w: %q", ErrBadMove, s)
	}
	src, ok := squareAt(s, 0)
	if !ok {
		return ParsedMove{}, fmt.Errorf("%w: %q", ErrBadMove, s)
	}
	dst, ok := squareAt(s, 2)
	if !ok {
		return ParsedMove{}, fmt.Errorf("%w: %q", ErrBadMove, s)
	}
	m := ParsedMove{Src: src, Dst: dst}
	if len(s) == 5 {
		c := s[4]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return ParsedMove{}, fmt.Errorf("%w: promotion %q", ErrBadMove, s)
		}
		m.Promotion = c
	}
	return m, nil
}

func (m ParsedMove) String() string {
	b := make([]byte, 0, 5)
	b = append(b, m.Src.String()...)
	b = append(b, m.Dst.String()...)
	if m.Promotion != 0 {
		b = append(b, m.Promotion)
	}
	return string(b)
}

// ParseMoves parses every well-formed move and skips the rest.
func ParseMoves(moves []string) []ParsedMove {
	out := make([]ParsedMove, 0, len(moves))
	for _, s := range moves {
		m, err := ParseMove(s)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
