// Package persistence provides database abstraction interfaces for storing finished games
package persistence

import (
	"context"
	"errors"
	"jeop3/internal/core"
)

// ErrNotFound is returned when no game has the requested id.
var ErrNotFound = errors.New("game not found")

// GameRepository handles game persistence operations
type GameRepository interface {
	// Save inserts or replaces a game and returns its id. An empty id is assigned.
	Save(ctx context.Context, game *core.Game) (string, error)

	// Get retrieves a game by ID
	Get(ctx context.Context, id string) (*core.Game, error)

	// List retrieves game metadata, newest first
	List(ctx context.Context, opts ListOptions) ([]core.GameMeta, error)

	// Delete removes a game by ID
	Delete(ctx context.Context, id string) error
}

// ListOptions provides common pagination options
type ListOptions struct {
	Limit  int // Maximum number of results (0 for the default)
	Offset int // Number of results to skip
}

// defaultListLimit applies when ListOptions.Limit is zero
const defaultListLimit = 100

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return defaultListLimit
	}
	return o.Limit
}

// Database represents the main database interface that aggregates all repositories
type Database interface {
	// Games returns the game repository
	Games() GameRepository

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error
}
