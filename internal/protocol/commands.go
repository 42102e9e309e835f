package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed marks a line whose fields cannot be decoded.
var ErrMalformed = errors.New("malformed command")

// placeholder is the wire token for an absent api key.
const placeholder = "-"

// Kind tags the concrete type behind a Command.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlayer
	KindGame
	KindNewGame
	KindPlayerID
	KindError
	KindPosition
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindGame:
		return "game"
	case KindNewGame:
		return "newgame"
	case KindPlayerID:
		return "playerid"
	case KindError:
		return "error"
	case KindPosition:
		return "position"
	default:
		return "unknown"
	}
}

// Command is a decoded server line. The set of implementations is closed.
type Command interface {
	Kind() Kind
	command()
}

// Player upserts a player record.
type Player struct {
	ID           int
	APIKey       *string
	Name         string
	Wins         int
	Losses       int
	Ties         int
	GameIDs      []int
	CurGameIndex int
}

// Game upserts a game record. Score is -1 (black won), 0 (draw) or 1 (white won).
type Game struct {
	ID         int
	WhiteID    int
	BlackID    int
	FEN        string
	Moves      []string
	Finished   bool
	Score      int
	ClientData [2]map[string]string
}

type Seat struct {
	ID     int
	APIKey *string
}

// NewGame seeds credentials for the two seats of an upcoming game.
type NewGame struct {
	Seats [2]Seat
}

// PlayerID acknowledges the identity of the logged-in viewer.
type PlayerID struct {
	ID int
}

// Error carries a server notice for the user.
type Error struct {
	Message string
}

// Position asks the logged-in player to move from FEN.
type Position struct {
	FEN string
}

// Unknown is any verb this client does not act on.
type Unknown struct {
	Line Line
}

func (Player) Kind() Kind   { return KindPlayer }
func (Game) Kind() Kind     { return KindGame }
func (NewGame) Kind() Kind  { return KindNewGame }
func (PlayerID) Kind() Kind { return KindPlayerID }
func (Error) Kind() Kind    { return KindError }
func (Position) Kind() Kind { return KindPosition }
func (Unknown) Kind() Kind  { return KindUnknown }

func (Player) command()   {}
func (Game) command()     {}
func (NewGame) command()  {}
func (PlayerID) command() {}
func (Error) command()    {}
func (Position) command() {}
func (Unknown) command()  {}

// Decode turns a tokenized line into a Command.
// Unrecognized verbs decode to Unknown without error.
func Decode(l Line) (Command, error) {
	f := l.Fields()
	switch l.Verb() {
	case "player":
		return decodePlayer(f)
	case "game":
		return decodeGame(f)
	case "newgame":
		return decodeNewGame(f)
	case "playerid":
		if len(f) < 1 {
			return nil, malformed("playerid", "id", "missing")
		}
		id, err := atoi("playerid", "id", f[0])
		if err != nil {
			return nil, err
		}
		return PlayerID{ID: id}, nil
	case "error":
		return Error{Message: strings.Join(f, ", ")}, nil
	case "position":
		if len(f) < 1 || f[0] == "" {
			return nil, malformed("position", "fen", "missing")
		}
		return Position{FEN: f[0]}, nil
	default:
		return Unknown{Line: l}, nil
	}
}

func decodePlayer(f []string) (Command, error) {
	const verb = "player"
	if len(f) < 8 {
		return nil, malformed(verb, "fields", fmt.Sprintf("want 8, got %d", len(f)))
	}
	p := Player{APIKey: optional(f[1]), Name: f[2]}
	var err error
	if p.ID, err = atoi(verb, "id", f[0]); err != nil {
		return nil, err
	}
	if p.Wins, err = atoi(verb, "wins", f[3]); err != nil {
		return nil, err
	}
	if p.Losses, err = atoi(verb, "losses", f[4]); err != nil {
		return nil, err
	}
	if p.Ties, err = atoi(verb, "ties", f[5]); err != nil {
		return nil, err
	}
	if p.GameIDs, err = intList(verb, "game_ids", f[6]); err != nil {
		return nil, err
	}
	if p.CurGameIndex, err = atoi(verb, "cur_game_index", f[7]); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeGame(f []string) (Command, error) {
	const verb = "game"
	if len(f) < 6 {
		return nil, malformed(verb, "fields", fmt.Sprintf("want at least 6, got %d", len(f)))
	}
	g := Game{FEN: f[3], Moves: strings.Fields(f[4])}
	var err error
	if g.ID, err = atoi(verb, "id", f[0]); err != nil {
		return nil, err
	}
	if g.WhiteID, err = atoi(verb, "white_id", f[1]); err != nil {
		return nil, err
	}
	if g.BlackID, err = atoi(verb, "black_id", f[2]); err != nil {
		return nil, err
	}
	if g.FEN == "" {
		return nil, malformed(verb, "fen", "empty")
	}
	switch f[5] {
	case "0":
	case "1":
		g.Finished = true
	default:
		return nil, malformed(verb, "finished", f[5])
	}
	if len(f) > 6 && f[6] != "" {
		if g.Score, err = atoi(verb, "score", f[6]); err != nil {
			return nil, err
		}
		if g.Score < -1 || g.Score > 1 {
			return nil, malformed(verb, "score", f[6])
		}
	}
	for side := 0; side < 2; side++ {
		raw := ""
		if len(f) > 7+side {
			raw = f[7+side]
		}
		g.ClientData[side] = ParseClientData(raw)
	}
	return g, nil
}

func decodeNewGame(f []string) (Command, error) {
	const verb = "newgame"
	if len(f) < 4 {
		return nil, malformed(verb, "fields", fmt.Sprintf("want 4, got %d", len(f)))
	}
	var cmd NewGame
	for i := 0; i < 2; i++ {
		id, err := atoi(verb, fmt.Sprintf("id%d", i), f[2*i])
		if err != nil {
			return nil, err
		}
		cmd.Seats[i] = Seat{ID: id, APIKey: optional(f[2*i+1])}
	}
	return cmd, nil
}

// ParseClientData reads backtick-separated "key value" annotations.
// The value is everything after the first space and may contain spaces.
func ParseClientData(raw string) map[string]string {
	out := make(map[string]string)
	for _, seg := range strings.Split(raw, "`") {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		key, value, _ := strings.Cut(seg, " ")
		out[key] = value
	}
	return out
}

func optional(tok string) *string {
	if tok == placeholder || tok == "" {
		return nil
	}
	s := tok
	return &s
}

func atoi(verb, field, tok string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(tok))
	if err != nil {
		return 0, malformed(verb, field, strconv.Quote(tok))
	}
	return n, nil
}

func intList(verb, field, tok string) ([]int, error) {
	parts := strings.Fields(tok)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := atoi(verb, field, p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func malformed(verb, field, detail string) error {
	return fmt.Errorf("%w: %s %s: %s", ErrMalformed, verb, field, detail)
}
