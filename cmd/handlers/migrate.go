package handlers

import (
	"context"
	"fmt"
	"jeop3/internal/config"
	"jeop3/internal/logger"
	"jeop3/internal/persistence"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage PostgreSQL schema migrations",
		Long: `Manage the PostgreSQL schema.

'jeop3 serve' and the other commands apply pending migrations when they
connect, so this is mostly useful for checking status or preparing a
database ahead of a deploy. SQLite databases create their schema on open.

Examples:
  jeop3 migrate up
  jeop3 migrate status`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *persistence.Migrator) error {
				if err := m.Migrate(ctx); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✅ All migrations applied successfully")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *persistence.Migrator) error {
				status, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				pending := 0
				fmt.Fprintf(out, "%-10s %-18s %s\n", "Version", "Applied", "Name")
				for _, s := range status {
					state := "pending"
					if s.Applied() {
						state = s.AppliedAt.Format("2006-01-02 15:04")
					} else {
						pending++
					}
					fmt.Fprintf(out, "%-10d %-18s %s\n", s.Version, state, s.Name)
				}
				fmt.Fprintf(out, "\nApplied: %d | Pending: %d | Total: %d\n", len(status)-pending, pending, len(status))
				return nil
			})
		},
	})

	return cmd
}

// withMigrator connects to Postgres without going through persistence.Open, which would migrate.
func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *persistence.Migrator) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Get()
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrations apply to postgres storage only (storage.driver is %q)", cfg.Storage.Driver)
	}

	db, err := persistence.NewPostgresDB(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	logger.Get().Info("Connected to database for migrations")
	return fn(ctx, persistence.NewMigrator(db))
}
