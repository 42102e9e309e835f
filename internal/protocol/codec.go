package protocol

import "strings"

// Line is one tokenized protocol line. Args[0] is the verb.
type Line struct {
	Args []string
}

func (l Line) Verb() string {
	if len(l.Args) == 0 {
		return ""
	}
	return l.Args[0]
}

// Fields returns the positional arguments after the verb.
func (l Line) Fields() []string {
	if len(l.Args) < 2 {
		return nil
	}
	return l.Args[1:]
}

func (l Line) String() string {
	if len(l.Args) <= 1 {
		return l.Verb()
	}
	return l.Verb() + " " + strings.Join(l.Fields(), ",")
}

// Tokenize splits a raw server message into lines, keeping server order.
// Each line splits once on its first space; the rest splits on commas.
func Tokenize(raw string) []Line {
	parts := strings.Split(raw, "\n")
	out := make([]Line, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		verb, rest, found := strings.Cut(p, " ")
		if !found {
			out = append(out, Line{Args: []string{verb}})
			continue
		}
		tokens := strings.Split(rest, ",")
		args := make([]string, 0, len(tokens)+1)
		args = append(args, verb)
		for _, tok := range tokens {
			args = append(args, strings.TrimSpace(tok))
		}
		out = append(out, Line{Args: args})
	}
	return out
}
