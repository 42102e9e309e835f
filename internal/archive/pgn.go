package archive

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// ReplaySAN replays coordinate moves from the standard start position and
// returns their SAN. Replay stops at the first move that does not apply, so
// games that started from a custom position yield a shorter list.
func ReplaySAN(moves []string) []string {
	game := nchess.NewGame()
	out := make([]string, 0, len(moves))
	for _, raw := range moves {
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			break
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			break
		}
		out = append(out, san)
	}
	return out
}

// scoreToPGN maps a server score (1 white, -1 black, 0 draw) to a PGN result.
func scoreToPGN(score int) string {
	switch score {
	case 1:
		return "1-0"
	case -1:
		return "0-1"
	case 0:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(white, black string, date time.Time, san []string, result string) string {
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Kata Chess\"]\n")
	b.WriteString("[Site \"kata-viewer\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(white)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(black)))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(san); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, san[i]))
		if i+1 < len(san) {
			b.WriteString(" ")
			b.WriteString(san[i+1])
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", "")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
