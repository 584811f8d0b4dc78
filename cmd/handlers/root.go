package handlers

import (
	"fmt"
	"jeop3/internal/config"
	"jeop3/internal/logger"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jeop3",
		Short: "Generate and curate AI-written trivia boards",
		Long: `jeop3 builds six-category trivia boards with an AI model.

Boards can come from a single theme or from your own sources: topics,
pasted text and article URLs. Every draft can be curated before it is
saved: regenerate or reword clues, rename categories, drop what you
don't want, then pick a title.

Examples:
  # Generate a board from a theme and review it in the terminal
  jeop3 generate --theme "Space exploration" --interactive

  # Mix sources (at most six categories in total)
  jeop3 generate --topic "Volcanoes@2" --url https://example.com/article@4

  # Browse saved games
  jeop3 games list

  # Start the HTTP API
  jeop3 serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jeop3.yaml)")

	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewGamesCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewMigrateCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables and configures logging.
// Logs go to stderr so command output on stdout stays clean.
func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	return nil
}
