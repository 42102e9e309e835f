package session

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/oracle"
	"github.com/park285/kata-chess-viewer/internal/protocol"
)

// Apply folds one command into s. Commands that do not change state return s
// itself.
func Apply(s *State, cmd protocol.Command, o oracle.Oracle) *State {
	switch c := cmd.(type) {
	case protocol.Player:
		return applyPlayer(s, c)
	case protocol.Game:
		return applyGame(s, c, o)
	case protocol.NewGame:
		return applyNewGame(s, c)
	case protocol.PlayerID:
		return s.withCurPlayer(c.ID)
	default:
		return s
	}
}

func applyPlayer(s *State, c protocol.Player) *State {
	p := Player{
		ID:           c.ID,
		Name:         c.Name,
		APIKey:       c.APIKey,
		Wins:         c.Wins,
		Losses:       c.Losses,
		Ties:         c.Ties,
		GameIDs:      c.GameIDs,
		CurGameIndex: c.CurGameIndex,
	}
	if prev, ok := s.players[c.ID]; ok {
		p.APIKey = stickyKey(prev.APIKey, c.APIKey)
	}
	return s.withPlayers(p)
}

// applyGame upserts the game. An oracle failure leaves it with no legal
// moves, the same as a terminal position.
func applyGame(s *State, c protocol.Game, o oracle.Oracle) *State {
	legal, err := o.LegalMoves(c.FEN)
	if err != nil {
		obslog.L().Warn("oracle_failed",
			zap.Int("game_id", c.ID),
			zap.String("fen", c.FEN),
			zap.Error(err),
		)
		legal = nil
	}
	return s.withGame(Game{
		ID:         c.ID,
		WhiteID:    c.WhiteID,
		BlackID:    c.BlackID,
		FEN:        c.FEN,
		Moves:      c.Moves,
		Finished:   c.Finished,
		Score:      c.Score,
		LegalMoves: legal,
		ClientData: c.ClientData,
	})
}

func applyNewGame(s *State, c protocol.NewGame) *State {
	seats := make(map[int]Player, len(c.Seats))
	for _, seat := range c.Seats {
		p, ok := seats[seat.ID]
		if !ok {
			p, ok = s.players[seat.ID]
		}
		if ok {
			p.APIKey = stickyKey(p.APIKey, seat.APIKey)
		} else {
			p = Player{ID: seat.ID, APIKey: seat.APIKey, GameIDs: []int{}}
		}
		seats[seat.ID] = p
	}
	updated := make([]Player, 0, len(seats))
	for _, p := range seats {
		updated = append(updated, p)
	}
	return s.withPlayers(updated...)
}

// stickyKey keeps a known api key when an update omits it.
func stickyKey(prev, next *string) *string {
	if next == nil {
		return prev
	}
	return next
}

// Fold tokenizes raw and applies its lines in order. A line that fails to
// decode is skipped and its error collected; later lines still fold.
// The applied commands are returned in order.
func Fold(s *State, raw string, o oracle.Oracle) (*State, []protocol.Command, error) {
	var (
		errs    error
		applied []protocol.Command
	)
	for _, line := range protocol.Tokenize(raw) {
		cmd, err := protocol.Decode(line)
		if err != nil {
			obslog.L().Warn("fold_skip_command",
				zap.String("verb", line.Verb()),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
			continue
		}
		s = Apply(s, cmd, o)
		applied = append(applied, cmd)
	}
	return s, applied, errs
}
