package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/park285/kata-chess-viewer/internal/config"
	"github.com/park285/kata-chess-viewer/internal/obslog"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

type flags struct {
	url             string
	apiKey          string
	name            string
	autoplay        bool
	stockfish       string
	renderDir       string
	tournamentOrder bool
	dryRun          bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var fl flags
	root := &cobra.Command{
		Use:           "kata-viewer",
		Short:         "Spectate and play on a kata chess server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return obslog.InitFromEnv()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			obslog.Sync()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&fl.url, "url", "", "server websocket url (KATA_WS_URL)")
	pf.StringVar(&fl.apiKey, "api-key", "", "api key to play with (KATA_API_KEY)")
	pf.StringVar(&fl.name, "name", "", "player name to set after login (KATA_PLAYER_NAME)")
	pf.BoolVar(&fl.autoplay, "autoplay", false, "move automatically for the logged-in player (KATA_AUTOPLAY)")
	pf.StringVar(&fl.stockfish, "stockfish", "", "UCI engine binary used for autoplay (STOCKFISH_PATH)")
	pf.StringVar(&fl.renderDir, "render-dir", "", "directory for rendered boards (KATA_RENDER_DIR)")
	pf.BoolVar(&fl.tournamentOrder, "tournament-order", false, "list active games first (KATA_TOURNAMENT_ORDER)")
	pf.BoolVar(&fl.dryRun, "dry-run", false, "log outgoing commands instead of sending them")

	root.AddCommand(newWatchCmd(&fl), newBotCmd(&fl), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// loadConfig layers flags that were set explicitly over config.Load.
func loadConfig(cmd *cobra.Command, fl *flags) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.WSURL = fl.url
	}
	if changed("api-key") {
		cfg.APIKey = fl.apiKey
	}
	if changed("name") {
		cfg.PlayerName = fl.name
	}
	if changed("autoplay") {
		cfg.Autoplay = fl.autoplay
	}
	if changed("stockfish") {
		cfg.StockfishPath = fl.stockfish
	}
	if changed("render-dir") {
		cfg.RenderDir = fl.renderDir
	}
	if changed("tournament-order") {
		cfg.TournamentOrder = fl.tournamentOrder
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
