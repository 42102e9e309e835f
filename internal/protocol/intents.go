package protocol

import (
	"sort"
	"strconv"
	"strings"
)

// Intent is a client-to-server message.
type Intent interface {
	Encode() string
}

type Observe struct{}

type Ping struct{}

type Move struct{ Move string }

type APIKey struct{ Key string }

// RequestPlayerID asks the server to echo the id bound to the current api key.
type RequestPlayerID struct{}

type Name struct{ Name string }

// NewGameIntent requests a game between two player ids.
type NewGameIntent struct{ A, B int }

// NewGameAny requests a game with server-chosen seats.
type NewGameAny struct{}

// Info attaches annotations to the sender's side of its current game.
type Info struct{ Data map[string]string }

func (Observe) Encode() string         { return "observe" }
func (Ping) Encode() string            { return "ping" }
func (m Move) Encode() string          { return "move " + m.Move }
func (k APIKey) Encode() string        { return "apikey " + k.Key }
func (RequestPlayerID) Encode() string { return "playerid" }
func (n Name) Encode() string          { return "name " + n.Name }
func (NewGameAny) Encode() string      { return "newgame" }

func (n NewGameIntent) Encode() string {
	return "newgame " + strconv.Itoa(n.A) + ", " + strconv.Itoa(n.B)
}

// Encode writes "info k v`k2 v2`" with keys sorted.
func (i Info) Encode() string {
	keys := make([]string, 0, len(i.Data))
	for k := range i.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("info ")
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte(' ')
		sb.WriteString(i.Data[k])
		sb.WriteByte('`')
	}
	return sb.String()
}
