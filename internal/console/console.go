// Package console is the line-oriented front end of the watch command.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/kata-chess-viewer/internal/notation"
	"github.com/park285/kata-chess-viewer/internal/notify"
	"github.com/park285/kata-chess-viewer/internal/obslog"
	"github.com/park285/kata-chess-viewer/internal/present"
	"github.com/park285/kata-chess-viewer/internal/render"
	"github.com/park285/kata-chess-viewer/internal/selection"
	"github.com/park285/kata-chess-viewer/internal/viewer"
)

var errUsage = errors.New("usage")

type Console struct {
	v         *viewer.Viewer
	f         *present.Formatter
	r         *render.Renderer
	renderDir string

	outM sync.Mutex
	out  io.Writer
}

func New(v *viewer.Viewer, f *present.Formatter, r *render.Renderer, renderDir string, out io.Writer) *Console {
	if renderDir == "" {
		renderDir = "."
	}
	return &Console{v: v, f: f, r: r, renderDir: renderDir, out: out}
}

// Run reads commands from in until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.println(c.f.Catalog().Text("repl.help", nil))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := c.Exec(ctx, line)
			if err != nil {
				c.println(err.Error())
			}
			if quit {
				return nil
			}
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	cat := c.f.Catalog()
	snap := c.v.Snapshot()

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		c.println(cat.Text("repl.help", nil))
	case "players":
		c.println(c.f.Players(snap))
	case "games":
		c.println(c.f.Games(snap))
	case "whoami":
		c.println(c.f.Session(snap, c.v.CurrentKey()))
	case "show":
		id, err := gameArg(args, 1)
		if err != nil {
			return false, err
		}
		c.println(c.f.Session(snap, c.v.CurrentKey()))
		c.println(c.f.Game(snap, id, c.v.Selection(id)))
	case "login":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: login <key>", errUsage)
		}
		return false, c.v.Login(ctx, args[0])
	case "playas":
		return false, c.playAs(ctx, args)
	case "name":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: name <name>", errUsage)
		}
		return false, c.v.SetName(ctx, strings.Join(args, " "))
	case "newgame":
		switch len(args) {
		case 0:
			return false, c.v.NewGameAny(ctx)
		case 2:
			a, errA := strconv.Atoi(args[0])
			b, errB := strconv.Atoi(args[1])
			if errA != nil || errB != nil {
				return false, fmt.Errorf("%w: newgame <a> <b>", errUsage)
			}
			return false, c.v.NewGame(ctx, a, b)
		default:
			return false, fmt.Errorf("%w: newgame [<a> <b>]", errUsage)
		}
	case "click":
		return false, c.click(ctx, args)
	case "render":
		id, err := gameArg(args, 1)
		if err != nil {
			return false, err
		}
		view, err := snap.View(id)
		if err != nil {
			return false, err
		}
		path, err := c.r.WriteFile(ctx, c.renderDir, view, c.v.Selection(id))
		if err != nil {
			return false, err
		}
		c.println(cat.Text("repl.rendered", map[string]any{"Path": path}))
	default:
		c.println(cat.Text("repl.unknown_command", map[string]any{"Command": cmd}))
	}
	return false, nil
}

func (c *Console) click(ctx context.Context, args []string) error {
	id, err := gameArg(args, 2)
	if err != nil {
		return err
	}
	sq, err := notation.ParseSquare(args[1])
	if err != nil {
		return err
	}
	mv, err := c.v.Click(ctx, id, sq)
	if err != nil {
		return err
	}
	cat := c.f.Catalog()
	if mv != nil {
		c.println(cat.Text("repl.move_sent", map[string]any{"Move": mv.String()}))
		return nil
	}
	st := c.v.Selection(id)
	switch st.Kind {
	case selection.Selected:
		c.println(cat.Text("repl.selected", map[string]any{"Square": st.Src.String()}))
	case selection.PendingPromotion:
		choices := make([]string, len(st.Promotion.Squares))
		for i, s := range st.Promotion.Squares {
			choices[i] = string(st.Promotion.Pieces[i]) + "@" + s.String()
		}
		c.println(cat.Text("repl.promotion", map[string]any{
			"Square": st.Promotion.Dst.String(), "Choices": strings.Join(choices, " "),
		}))
	}
	obslog.L().Debug("console_click", zap.Int("game_id", id), zap.String("square", sq.String()), zap.Stringer("state", st.Kind))
	return nil
}

// playAs logs in with the api key the server revealed for a player.
func (c *Console) playAs(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: playas <player-id>", errUsage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: player id %q", errUsage, args[0])
	}
	p, ok := c.v.Snapshot().Player(id)
	if !ok {
		return fmt.Errorf("unknown player #%d", id)
	}
	if p.APIKey == nil {
		return fmt.Errorf("no api key known for player #%d", id)
	}
	return c.v.Login(ctx, *p.APIKey)
}

func gameArg(args []string, want int) (int, error) {
	if len(args) != want {
		return 0, fmt.Errorf("%w: expected %d argument(s)", errUsage, want)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: game id %q", errUsage, args[0])
	}
	return id, nil
}

// Notify prints server notices between command output.
func (c *Console) Notify(_ context.Context, n notify.Notice) error {
	c.println(c.f.Notice(n))
	return nil
}

func (c *Console) println(s string) {
	c.outM.Lock()
	defer c.outM.Unlock()
	fmt.Fprintln(c.out, s)
}
