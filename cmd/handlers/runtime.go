package handlers

import (
	"context"
	"fmt"
	"jeop3/internal/config"
	"jeop3/internal/cost"
	"jeop3/internal/fetch"
	"jeop3/internal/generation"
	"jeop3/internal/llm"
	"jeop3/internal/persistence"
	"jeop3/internal/session"
	"time"
)

// openDatabase connects to the configured game storage.
func openDatabase(ctx context.Context, cfg *config.Config) (persistence.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Duration(cfg.Storage.Timeout, 5*time.Second))
	defer cancel()

	db, err := persistence.Open(ctx, cfg.Storage, cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// newSessionDeps builds the generation backend and everything a session needs from config.
func newSessionDeps(ctx context.Context, cfg *config.Config, db persistence.Database, ledger *cost.Ledger) (session.Deps, error) {
	gateway, err := llm.NewGatewayFromConfig(ctx, cfg.AI, ledger)
	if err != nil {
		return session.Deps{}, fmt.Errorf("failed to create AI client: %w", err)
	}

	deps := session.Deps{
		Generator:        gateway,
		Fetcher:          fetch.NewFetcherFromConfig(cfg.Fetch),
		Scheduler:        generation.SchedulerFromConfig(cfg.Generation),
		FetchConcurrency: cfg.Generation.Concurrency,
		TeamCount:        cfg.Generation.TeamCount,
		Model:            gateway.Model(),
	}
	if db != nil {
		deps.Games = db.Games()
	}
	return deps, nil
}
