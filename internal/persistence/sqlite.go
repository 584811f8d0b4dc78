package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"jeop3/internal/core"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB implements the Database interface on a local SQLite file
type SQLiteDB struct {
	db    *sql.DB
	path  string
	games GameRepository
}

// NewSQLiteDB opens or creates the database at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	// Ensure data directory exists
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids "database is locked" under concurrent saves.
	db.SetMaxOpenConns(1)

	s := &SQLiteDB{db: db, path: path, games: &sqliteGameRepo{db: db}}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// initialize creates the necessary tables
func (s *SQLiteDB) initialize() error {
	gamesTable := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		category_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		document TEXT NOT NULL
	);`
	index := `CREATE INDEX IF NOT EXISTS idx_games_created_at ON games (created_at);`

	for _, stmt := range []string{gamesTable, index} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (s *SQLiteDB) Games() GameRepository { return s.games }

// Path is the database file location.
func (s *SQLiteDB) Path() string { return s.path }

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// sqliteGameRepo implements GameRepository for SQLite
type sqliteGameRepo struct {
	db *sql.DB
}

func (r *sqliteGameRepo) Save(ctx context.Context, game *core.Game) (string, error) {
	doc, err := prepareGame(game)
	if err != nil {
		return "", err
	}

	query := `
	INSERT OR REPLACE INTO games
	(id, title, subtitle, category_count, created_at, document)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		game.ID, game.Title, game.Subtitle, len(game.Categories), game.CreatedAt.UTC(), string(doc),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save game: %w", err)
	}
	return game.ID, nil
}

func (r *sqliteGameRepo) Get(ctx context.Context, id string) (*core.Game, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM games WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return decodeGame([]byte(doc))
}

func (r *sqliteGameRepo) List(ctx context.Context, opts ListOptions) ([]core.GameMeta, error) {
	query := `
	SELECT id, title, subtitle, category_count, created_at
	FROM games
	ORDER BY created_at DESC
	LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, opts.limit(), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	metas, err := scanMetas(rows)
	for i := range metas {
		metas[i].CreatedAt = metas[i].CreatedAt.In(time.UTC)
	}
	return metas, err
}

func (r *sqliteGameRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return checkAffected(res, id)
}
