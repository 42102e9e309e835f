package session

import (
	"github.com/park285/kata-chess-viewer/internal/notation"
)

// GameIsActive reports whether an unfinished game is the current entry of
// both its players' queues.
func (s *State) GameIsActive(id int) bool {
	g, ok := s.games[id]
	if !ok || g.Finished {
		return false
	}
	white, ok := s.players[g.WhiteID]
	if !ok {
		return false
	}
	black, ok := s.players[g.BlackID]
	if !ok {
		return false
	}
	wg, ok := white.CurrentGame()
	if !ok || wg != id {
		return false
	}
	bg, ok := black.CurrentGame()
	return ok && bg == id
}

// GameScoreStr renders the result: "1 - 0", "0 - 1" or "1/2 - 1/2".
// It returns "" for unknown games.
func (s *State) GameScoreStr(id int) string {
	g, ok := s.games[id]
	if !ok {
		return ""
	}
	return ScoreString(g.Score)
}

func ScoreString(score int) string {
	switch score {
	case 0:
		return "1/2 - 1/2"
	case 1:
		return "1 - 0"
	default:
		return "0 - 1"
	}
}

type Status int

const (
	StatusNotStarted Status = iota
	StatusWhiteToMove
	StatusBlackToMove
	StatusFinished
)

func (st Status) String() string {
	switch st {
	case StatusWhiteToMove:
		return "White To Move"
	case StatusBlackToMove:
		return "Black To Move"
	case StatusFinished:
		return "Finished"
	default:
		return "Not Started"
	}
}

// GameStatus is finished, the side to move of an active game, or not started.
func (s *State) GameStatus(id int) Status {
	g, ok := s.games[id]
	switch {
	case !ok:
		return StatusNotStarted
	case g.Finished:
		return StatusFinished
	case !s.GameIsActive(id):
		return StatusNotStarted
	case notation.Turn(g.FEN) == notation.White:
		return StatusWhiteToMove
	default:
		return StatusBlackToMove
	}
}

// BoardView is what one rendered board needs: pieces, side to move, legal
// moves and which sides the viewer may move for.
type BoardView struct {
	GameID     int
	Board      notation.Board
	Turn       notation.Player
	Legal      []notation.ParsedMove
	LastMove   *notation.ParsedMove
	AllowMoves [2]bool
	Reversed   bool
	Finished   bool
}

// CanAct reports whether the viewer may move for the side to move.
func (v BoardView) CanAct() bool {
	return v.AllowMoves[v.Turn]
}

// View derives the board view of game id for the current player.
func (s *State) View(id int) (BoardView, error) {
	g, ok := s.games[id]
	if !ok {
		return BoardView{}, ErrUnknownGame
	}
	board, turn, err := notation.ParsePlacement(g.FEN)
	if err != nil {
		return BoardView{}, err
	}
	v := BoardView{
		GameID:   id,
		Board:    board,
		Turn:     turn,
		Legal:    notation.ParseMoves(g.LegalMoves),
		Finished: g.Finished,
	}
	if n := len(g.Moves); n > 0 {
		if last, err := notation.ParseMove(g.Moves[n-1]); err == nil {
			v.LastMove = &last
		}
	}
	if cur, ok := s.CurPlayerID(); ok {
		v.AllowMoves = [2]bool{g.WhiteID == cur, g.BlackID == cur}
		v.Reversed = g.BlackID == cur
	}
	return v, nil
}
