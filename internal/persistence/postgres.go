package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"jeop3/internal/core"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // Postgres driver
)

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db    *sql.DB
	games GameRepository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{db: db, games: &postgresGameRepo{db: db}}, nil
}

func (p *PostgresDB) Games() GameRepository { return p.games }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// postgresGameRepo implements GameRepository for PostgreSQL. The full game is kept as a JSONB
// document next to the columns the list view needs.
type postgresGameRepo struct {
	db *sql.DB
}

// prepareGame assigns an id and creation time and encodes the document.
func prepareGame(game *core.Game) ([]byte, error) {
	if game.ID == "" {
		game.ID = uuid.NewString()
	}
	if game.CreatedAt.IsZero() {
		game.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game: %w", err)
	}
	return doc, nil
}

func decodeGame(doc []byte) (*core.Game, error) {
	var game core.Game
	if err := json.Unmarshal(doc, &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}
	return &game, nil
}

func (r *postgresGameRepo) Save(ctx context.Context, game *core.Game) (string, error) {
	doc, err := prepareGame(game)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO games (id, title, subtitle, category_count, created_at, document)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			subtitle = EXCLUDED.subtitle,
			category_count = EXCLUDED.category_count,
			document = EXCLUDED.document
	`
	_, err = r.db.ExecContext(ctx, query,
		game.ID, game.Title, game.Subtitle, len(game.Categories), game.CreatedAt, doc,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert/update game: %w", err)
	}
	return game.ID, nil
}

func (r *postgresGameRepo) Get(ctx context.Context, id string) (*core.Game, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `SELECT document FROM games WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return decodeGame(doc)
}

func (r *postgresGameRepo) List(ctx context.Context, opts ListOptions) ([]core.GameMeta, error) {
	query := `
		SELECT id, title, subtitle, category_count, created_at
		FROM games
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, opts.limit(), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()
	return scanMetas(rows)
}

func (r *postgresGameRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return checkAffected(res, id)
}

func scanMetas(rows *sql.Rows) ([]core.GameMeta, error) {
	metas := []core.GameMeta{}
	for rows.Next() {
		var m core.GameMeta
		if err := rows.Scan(&m.ID, &m.Title, &m.Subtitle, &m.CategoryCount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
