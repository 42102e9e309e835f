package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/kata-chess-viewer/pkg/katadto"
)

const schema = `CREATE TABLE IF NOT EXISTS kata_games (
    game_id     INTEGER PRIMARY KEY,
    white_id    INTEGER NOT NULL,
    white_name  TEXT NOT NULL DEFAULT '',
    black_id    INTEGER NOT NULL,
    black_name  TEXT NOT NULL DEFAULT '',
    score       SMALLINT NOT NULL,
    result      TEXT NOT NULL,
    fen         TEXT NOT NULL,
    moves_uci   JSONB NOT NULL,
    moves_san   JSONB NOT NULL,
    pgn         TEXT NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL
)`

type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(pingCtx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save upserts one finished game.
func (r *Repository) Save(ctx context.Context, g katadto.ArchivedGame) error {
	movesUCI, err := json.Marshal(g.MovesUCI)
	if err != nil {
		return err
	}
	movesSAN, err := json.Marshal(g.MovesSAN)
	if err != nil {
		return err
	}

	q := `INSERT INTO kata_games (
        game_id, white_id, white_name, black_id, black_name,
        score, result, fen, moves_uci, moves_san, pgn, ended_at
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
      ) ON CONFLICT (game_id) DO UPDATE SET
        white_id=EXCLUDED.white_id,
        white_name=EXCLUDED.white_name,
        black_id=EXCLUDED.black_id,
        black_name=EXCLUDED.black_name,
        score=EXCLUDED.score,
        result=EXCLUDED.result,
        fen=EXCLUDED.fen,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at`

	_, err = r.db.ExecContext(ctx, q,
		g.GameID,
		g.WhiteID, g.WhiteName,
		g.BlackID, g.BlackName,
		g.Score, g.Result, g.FEN,
		string(movesUCI), string(movesSAN), g.PGN,
		g.EndedAt,
	)
	return err
}
