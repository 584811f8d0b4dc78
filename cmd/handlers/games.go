package handlers

import (
	"context"
	"fmt"
	"io"
	"jeop3/internal/config"
	"jeop3/internal/core"
	"jeop3/internal/cost"
	"jeop3/internal/persistence"
	"jeop3/internal/quality"
	"jeop3/internal/render"
	"jeop3/internal/session"
	"jeop3/internal/tui"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewGamesCmd creates the games command group
func NewGamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Browse and manage saved games",
		Long: `Browse and manage saved games.

Examples:
  jeop3 games list --limit 20
  jeop3 games show <id>
  jeop3 games export <id> --format html --output ./exports
  jeop3 games edit <id>
  jeop3 games audit`,
	}

	cmd.AddCommand(newGamesListCmd())
	cmd.AddCommand(newGamesShowCmd())
	cmd.AddCommand(newGamesExportCmd())
	cmd.AddCommand(newGamesDeleteCmd())
	cmd.AddCommand(newGamesAuditCmd())
	cmd.AddCommand(newGamesEditCmd())

	return cmd
}

// withDatabase opens the configured database for the duration of fn.
func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, db persistence.Database) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := openDatabase(ctx, config.Get())
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func newGamesListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved games, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, db persistence.Database) error {
				games, err := db.Games().List(ctx, persistence.ListOptions{Limit: limit, Offset: offset})
				if err != nil {
					return fmt.Errorf("failed to list games: %w", err)
				}
				printGameList(cmd.OutOrStdout(), games)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of games to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of games to skip")

	return cmd
}

func printGameList(out io.Writer, games []core.GameMeta) {
	if len(games) == 0 {
		fmt.Fprintln(out, "No games saved yet")
		fmt.Fprintln(out, "💡 Create one with 'jeop3 generate --theme <theme>'")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORIES\tCREATED")
	for _, g := range games {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", g.ID, g.Title, g.CategoryCount, g.CreatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
	fmt.Fprintf(out, "\nShowing %d games\n", len(games))
}

func newGamesShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			return withDatabase(cmd, func(ctx context.Context, db persistence.Database) error {
				game, err := db.Games().Get(ctx, args[0])
				if err != nil {
					return err
				}
				content, err := render.Render(*game, f)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(content)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "md", "Output format: md, html or json")

	return cmd
}

func newGamesExportCmd() *cobra.Command {
	var format, outputDir string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a saved game to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			return withDatabase(cmd, func(ctx context.Context, db persistence.Database) error {
				game, err := db.Games().Get(ctx, args[0])
				if err != nil {
					return err
				}
				path, err := render.WriteGameToFile(*game, f, outputDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "md", "Output format: md, html or json")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "games", "Output directory")

	return cmd
}

func newGamesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, db persistence.Database) error {
				if err := db.Games().Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted game %s\n", args[0])
				return nil
			})
		},
	}
}

func newGamesAuditCmd() *cobra.Command {
	var limit int
	var detailed bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Grade the quality of saved games",
		Long: `Evaluate recent saved games for duplicate responses, answers leaked in
clues, vague wording and incomplete categories.

Examples:
  jeop3 games audit
  jeop3 games audit --limit 50 --detailed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, db persistence.Database) error {
				games, err := loadGames(ctx, db.Games(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(games) == 0 {
					fmt.Fprintln(out, "No games to audit")
					return nil
				}
				evaluator := quality.NewBoardEvaluator()
				report := evaluator.AuditGames(games)
				if detailed {
					for _, gr := range report.GameReports {
						evaluator.PrintReport(out, gr.Title, gr.Report)
					}
				}
				evaluator.PrintAuditReport(out, report)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of recent games to audit")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Print the report of every game")

	return cmd
}

func loadGames(ctx context.Context, repo persistence.GameRepository, limit int) ([]core.Game, error) {
	metas, err := repo.List(ctx, persistence.ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	games := make([]core.Game, 0, len(metas))
	for _, m := range metas {
		g, err := repo.Get(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load game %s: %w", m.ID, err)
		}
		games = append(games, *g)
	}
	return games, nil
}

func newGamesEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id>",
		Short: "Curate a saved game in the terminal and save the result as a new game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, db persistence.Database) error {
				game, err := db.Games().Get(ctx, args[0])
				if err != nil {
					return err
				}
				deps, err := newSessionDeps(ctx, config.Get(), db, cost.NewLedger())
				if err != nil {
					return err
				}
				sess := session.New(deps, session.Settings{})
				defer sess.Cancel()
				sess.SeedFromGame(*game)

				saved, err := tui.Run(ctx, sess)
				if err != nil {
					return err
				}
				if saved == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Closed without saving.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved game %s: %q (%d categories)\n", saved.ID, saved.Title, len(saved.Categories))
				return nil
			})
		},
	}
}
