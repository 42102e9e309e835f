// Package present turns session snapshots into the text the watch console
// prints.
package present

import (
	"sort"
	"strconv"
	"strings"

	"github.com/park285/kata-chess-viewer/internal/msgcat"
	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/notify"
	"github.com/park285/kata-chess-viewer/internal/selection"
	"github.com/park285/kata-chess-viewer/internal/session"
)

type Formatter struct {
	cat             *msgcat.Catalog
	tournamentOrder bool
}

type Option func(*Formatter)

// WithTournamentOrder lists active games first, then finished, then waiting.
func WithTournamentOrder(on bool) Option {
	return func(f *Formatter) { f.tournamentOrder = on }
}

func NewFormatter(cat *msgcat.Catalog, opts ...Option) *Formatter {
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	f := &Formatter{cat: cat}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Formatter) Players(st *session.State) string {
	players := st.Players()
	if len(players) == 0 {
		return f.cat.Text("players.empty", nil)
	}
	cur, hasCur := st.CurPlayerID()
	lines := []string{f.cat.Text("players.header", nil)}
	for _, p := range players {
		marker := " "
		if hasCur && p.ID == cur {
			marker = "*"
		}
		lines = append(lines, f.cat.Text("players.row", map[string]any{
			"Marker": marker, "Name": p.Name, "Wins": p.Wins, "Losses": p.Losses, "Ties": p.Ties,
		}))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Games(st *session.State) string {
	games := st.Games()
	if f.tournamentOrder {
		games = st.TournamentOrder()
	}
	if len(games) == 0 {
		return f.cat.Text("games.empty", nil)
	}
	lines := []string{f.cat.Text("games.header", nil)}
	for _, g := range games {
		lines = append(lines, f.cat.Text("games.row", map[string]any{
			"ID": g.ID, "White": playerName(st, g.WhiteID), "Black": playerName(st, g.BlackID), "Status": f.statusText(st, g),
		}))
	}
	return strings.Join(lines, "\n")
}

// statusText is the sidebar status: the score once finished, else the
// turn or "Not Started".
func (f *Formatter) statusText(st *session.State, g session.Game) string {
	if g.Finished {
		return f.cat.Text("game.score", map[string]any{"Score": session.ScoreString(g.Score)})
	}
	return st.GameStatus(g.ID).String()
}

// Session is the title line: the key in use and who it plays as.
func (f *Formatter) Session(st *session.State, apiKey string) string {
	var parts []string
	if apiKey != "" {
		parts = append(parts, f.cat.Text("session.api_key", map[string]any{"Key": apiKey}))
	}
	if cur, ok := st.CurPlayerID(); ok {
		parts = append(parts, f.cat.Text("session.logged_in_as", map[string]any{"Name": playerName(st, cur), "ID": cur}))
	} else {
		parts = append(parts, f.cat.Text("session.spectating", nil))
	}
	return strings.Join(parts, "  |  ")
}

// Game is the detail view of one game with the board drawn from the
// current player's side.
func (f *Formatter) Game(st *session.State, id int, sel selection.State) string {
	g, ok := st.Game(id)
	if !ok {
		return f.cat.Text("game.unknown", map[string]any{"ID": id})
	}
	view, err := st.View(id)
	if err != nil {
		return f.cat.Text("game.unknown", map[string]any{"ID": id})
	}

	var sb strings.Builder
	sb.WriteString(f.cat.Text("game.title", map[string]any{
		"ID": id, "White": f.seatLabel(st, g.WhiteID), "Black": f.seatLabel(st, g.BlackID),
	}))
	sb.WriteString("\n")
	sb.WriteString(f.cat.Text("game.status", map[string]any{"Status": f.statusText(st, g)}))
	sb.WriteString("\n\n")
	sb.WriteString(Board(view, sel))

	if pairs := MovePairs(g.Moves); len(pairs) > 0 {
		sb.WriteString("\n")
		sb.WriteString(f.cat.Text("game.moves_header", nil))
		sb.WriteString("\n")
		for _, p := range pairs {
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	}
	for side, seat := range []int{g.WhiteID, g.BlackID} {
		table := ClientDataTable(g.ClientData[side])
		if table == "" {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(f.cat.Text("game.client_data_header", map[string]any{
			"Side": notation.Player(side).String(), "Name": playerName(st, seat),
		}))
		sb.WriteString("\n")
		sb.WriteString(table)
	}
	if trace := GameEvalTrace(g); !trace.Empty() {
		sb.WriteString("\n")
		sb.WriteString(f.evalTrace(trace))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// seatLabel is the player name with the current player marker and, when
// known, the api key that plays the seat.
func (f *Formatter) seatLabel(st *session.State, id int) string {
	label := playerName(st, id)
	if cur, ok := st.CurPlayerID(); ok && cur == id {
		label += " (" + f.cat.Text("game.current_player", nil) + ")"
	}
	if p, ok := st.Player(id); ok && p.APIKey != nil {
		label += " [" + f.cat.Text("session.api_key", map[string]any{"Key": *p.APIKey}) + "]"
	}
	return label
}

func (f *Formatter) Notice(n notify.Notice) string {
	if n.Kind == notify.KindServerError {
		return f.cat.Text("notice.server_error", map[string]any{"Message": n.Message})
	}
	return n.Message
}

// Catalog exposes the message catalog for console prompts.
func (f *Formatter) Catalog() *msgcat.Catalog { return f.cat }

func playerName(st *session.State, id int) string {
	if p, ok := st.Player(id); ok && p.Name != "" {
		return p.Name
	}
	return "#" + strconv.Itoa(id)
}

// MovePairs numbers moves in white/black pairs: "1. e2e4 e7e5".
func MovePairs(moves []string) []string {
	out := make([]string, 0, (len(moves)+1)/2)
	for i := 0; i < len(moves); i += 2 {
		line := strconv.Itoa(i/2+1) + ". " + moves[i]
		if i+1 < len(moves) {
			line += " " + moves[i+1]
		}
		out = append(out, line)
	}
	return out
}

// ClientDataTable renders key/value pairs sorted by key, keys padded to
// the widest one. The eval history is drawn separately and left out.
func ClientDataTable(data map[string]string) string {
	keys := make([]string, 0, len(data))
	width := 0
	for k := range data {
		if k == evalKey {
			continue
		}
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString("  ")
		sb.WriteString(k)
		sb.WriteString(strings.Repeat(" ", width-len(k)+2))
		sb.WriteString(data[k])
		sb.WriteString("\n")
	}
	return sb.String()
}
