package handlers

import (
	"context"
	"fmt"
	"jeop3/internal/config"
	"jeop3/internal/cost"
	"jeop3/internal/logger"
	"jeop3/internal/server"
	"jeop3/internal/session"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = time.Minute
)

// NewServeCmd creates the serve command for starting the HTTP API
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the jeop3 HTTP API.

The server provides:
  • Creation sessions: sources, generation, curation and finalization
  • Stored games: list, export, quality reports and editing
  • Health check endpoint

Idle sessions expire after server.session_ttl (default 2h).

Examples:
  # Start server on default port 8080
  jeop3 serve

  # Start on custom port
  jeop3 serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Get()
	cfg := config.Get()

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := cost.NewLedger()
	deps, err := newSessionDeps(ctx, cfg, db, ledger)
	if err != nil {
		return err
	}
	log.Info("Generation backend ready", "provider", cfg.AI.Provider, "model", deps.Model)

	sessions := session.NewManager(deps, config.Duration(serverCfg.SessionTTL, session.DefaultTTL))
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, sweepInterval)

	srv := server.New(db, sessions, serverCfg)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		sessions.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	summary := ledger.Summary()
	log.Info("Server stopped", "ai_calls", summary.Calls, "estimated_cost", summary.Cost)
	return nil
}
