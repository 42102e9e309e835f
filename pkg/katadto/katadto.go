// Package katadto holds the JSON shapes published outside the process.
package katadto

import "time"

// Player is a public player record. API keys are never part of it.
type Player struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	Ties         int    `json:"ties"`
	GameIDs      []int  `json:"game_ids"`
	CurGameIndex int    `json:"cur_game_index"`
}

type Game struct {
	ID         int                  `json:"id"`
	WhiteID    int                  `json:"white_id"`
	BlackID    int                  `json:"black_id"`
	FEN        string               `json:"fen"`
	Moves      []string             `json:"moves"`
	Finished   bool                 `json:"finished"`
	Score      int                  `json:"score"`
	Result     string               `json:"result,omitempty"`
	Status     string               `json:"status"`
	Active     bool                 `json:"active"`
	ClientData [2]map[string]string `json:"client_data"`
}

// ArchivedGame is a finished game as stored by the archive.
type ArchivedGame struct {
	GameID    int
	WhiteID   int
	BlackID   int
	WhiteName string
	BlackName string
	Score     int
	Result    string
	FEN       string
	MovesUCI  []string
	MovesSAN  []string
	PGN       string
	EndedAt   time.Time
}
