package persistence

import (
	"context"
	"fmt"
	"jeop3/internal/config"
	"jeop3/internal/logger"
	"path/filepath"
	"strings"
)

// DefaultSQLiteFile is the database file name used under the data directory.
const DefaultSQLiteFile = "games.db"

// Open connects to the configured database. SQLite is the default; an empty DSN puts the file
// under dataDir. Postgres databases are migrated before use.
func Open(ctx context.Context, cfg config.Storage, dataDir string) (Database, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite", "sqlite3":
		path := cfg.DSN
		if path == "" {
			path = filepath.Join(dataDir, DefaultSQLiteFile)
		}
		logger.Get().Debug("Opening SQLite database", "path", path)
		db, err := NewSQLiteDB(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres storage requires a DSN (set storage.dsn or DATABASE_URL)")
		}
		db, err := NewPostgresDB(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := NewMigrator(db).Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q (expected sqlite or postgres)", cfg.Driver)
}
