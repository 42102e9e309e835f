package session

import (
	"errors"
	"sort"
)

var ErrUnknownGame = errors.New("unknown game")

// Player is a known participant. APIKey is nil until the server reveals it.
type Player struct {
	ID           int
	Name         string
	APIKey       *string
	Wins         int
	Losses       int
	Ties         int
	GameIDs      []int
	CurGameIndex int
}

// CurrentGame returns the game id the player's queue points at.
func (p Player) CurrentGame() (int, bool) {
	if p.CurGameIndex < 0 || p.CurGameIndex >= len(p.GameIDs) {
		return 0, false
	}
	return p.GameIDs[p.CurGameIndex], true
}

// Game is a known game. LegalMoves is what the oracle reported for FEN.
type Game struct {
	ID         int
	WhiteID    int
	BlackID    int
	FEN        string
	Moves      []string
	Finished   bool
	Score      int
	LegalMoves []string
	ClientData [2]map[string]string
}

// Seat returns the player id sitting on side (0 white, 1 black).
func (g Game) Seat(side int) int {
	if side == 0 {
		return g.WhiteID
	}
	return g.BlackID
}

// State is an immutable snapshot of every known player and game.
// Records returned by accessors share backing slices and maps with the
// snapshot and must be treated as read-only.
type State struct {
	players     map[int]Player
	games       map[int]Game
	curPlayerID *int
}

var empty = &State{players: map[int]Player{}, games: map[int]Game{}}

// Empty is the state at connection start.
func Empty() *State { return empty }

func (s *State) Player(id int) (Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

func (s *State) Game(id int) (Game, bool) {
	g, ok := s.games[id]
	return g, ok
}

// CurPlayerID is the id acknowledged by the last playerid command.
func (s *State) CurPlayerID() (int, bool) {
	if s.curPlayerID == nil {
		return 0, false
	}
	return *s.curPlayerID, true
}

func (s *State) PlayerCount() int { return len(s.players) }

func (s *State) GameCount() int { return len(s.games) }

// Players returns every player ordered by id.
func (s *State) Players() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Games returns every game, newest (highest id) first.
func (s *State) Games() []Game {
	out := make([]Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// TournamentOrder lists active games, then finished ones, then waiting ones,
// each group newest first.
func (s *State) TournamentOrder() []Game {
	all := s.Games()
	out := make([]Game, 0, len(all))
	for _, g := range all {
		if s.GameIsActive(g.ID) {
			out = append(out, g)
		}
	}
	for _, g := range all {
		if g.Finished {
			out = append(out, g)
		}
	}
	for _, g := range all {
		if !g.Finished && !s.GameIsActive(g.ID) {
			out = append(out, g)
		}
	}
	return out
}

func (s *State) withPlayers(ps ...Player) *State {
	players := make(map[int]Player, len(s.players)+len(ps))
	for k, v := range s.players {
		players[k] = v
	}
	for _, p := range ps {
		players[p.ID] = p
	}
	return &State{players: players, games: s.games, curPlayerID: s.curPlayerID}
}

func (s *State) withGame(g Game) *State {
	games := make(map[int]Game, len(s.games)+1)
	for k, v := range s.games {
		games[k] = v
	}
	games[g.ID] = g
	return &State{players: s.players, games: games, curPlayerID: s.curPlayerID}
}

func (s *State) withCurPlayer(id int) *State {
	return &State{players: s.players, games: s.games, curPlayerID: &id}
}
