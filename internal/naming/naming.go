// Package naming derives game titles and team names from generated board content.
package naming

import (
	"context"
	"fmt"
	"jeop3/internal/core"
	"jeop3/internal/llm"
	"jeop3/internal/logger"
	"log/slog"
	"strings"
)

// DefaultTeamCount is used when no count is requested.
const DefaultTeamCount = 4

// maxTeamContextTitles bounds how many category titles are folded into a team name request.
const maxTeamContextTitles = 3

// NameGenerator is the part of the generation client naming needs.
type NameGenerator interface {
	Titles(ctx context.Context, c llm.Context) ([]core.TitleOption, error)
	TeamNames(ctx context.Context, c llm.Context) ([]string, error)
}

// DraftStore is the part of the draft store Enrich writes to.
type DraftStore interface {
	Snapshot() core.DraftGame
	SetTitles(opts []core.TitleOption) error
	SetTeamNames(names []string) error
}

// Generator names games. Its methods never fail; they fall back to defaults instead.
type Generator struct {
	gen NameGenerator
	log *slog.Logger
}

// NewGenerator creates a naming generator.
func NewGenerator(gen NameGenerator) *Generator {
	return &Generator{gen: gen, log: logger.Get()}
}

// SummarizeContext lists each category title with its first two clues. The result stays small
// however many clues the board holds.
func SummarizeContext(d core.DraftGame) string {
	var sb strings.Builder
	for _, cat := range d.Categories {
		sb.WriteString(cat.Title)
		sb.WriteString(":\n")
		for j, clue := range cat.Clues {
			if j >= 2 {
				break
			}
			sb.WriteString(fmt.Sprintf("  %d: %s -> %s\n", clue.Value, clue.Clue, clue.Response))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// DefaultTitle is the fallback title for a theme.
func DefaultTitle(theme string) core.TitleOption {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		theme = "Trivia"
	}
	return core.TitleOption{Title: theme + " Night", Subtitle: ""}
}

// DefaultTeamNames returns Team 1..count.
func DefaultTeamNames(count int) []string {
	if count <= 0 {
		count = DefaultTeamCount
	}
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("Team %d", i+1)
	}
	return names
}

// DeriveTitles asks for title options grounded in the board's content.
func (g *Generator) DeriveTitles(ctx context.Context, d core.DraftGame) []core.TitleOption {
	opts, err := g.gen.Titles(ctx, llm.Context{Theme: d.Theme, Count: 3, Summary: SummarizeContext(d)})
	if err != nil {
		g.log.Warn("Title generation failed, using default", "theme", d.Theme, "error", err)
		return []core.TitleOption{DefaultTitle(d.Theme)}
	}
	if len(opts) == 0 {
		g.log.Warn("Title generation returned no options, using default", "theme", d.Theme)
		return []core.TitleOption{DefaultTitle(d.Theme)}
	}
	return opts
}

// DeriveTeamNames asks for count team names themed on the board. Extra names are dropped and
// missing ones are filled from the defaults.
func (g *Generator) DeriveTeamNames(ctx context.Context, d core.DraftGame, count int) []string {
	if count <= 0 {
		count = DefaultTeamCount
	}
	titles := make([]string, 0, maxTeamContextTitles)
	for _, cat := range d.Categories {
		if len(titles) == maxTeamContextTitles {
			break
		}
		titles = append(titles, cat.Title)
	}

	names, err := g.gen.TeamNames(ctx, llm.Context{Theme: d.Theme, Count: count, CategoryTitles: titles})
	if err != nil || len(names) == 0 {
		g.log.Warn("Team name generation failed, using defaults", "theme", d.Theme, "error", err)
		return DefaultTeamNames(count)
	}
	if len(names) > count {
		names = names[:count]
	}
	defaults := DefaultTeamNames(count)
	for len(names) < count {
		names = append(names, defaults[len(names)])
	}
	return names
}

// Enrich fills the titles and team names of the draft held by store.
func (g *Generator) Enrich(ctx context.Context, store DraftStore, teamCount int) error {
	d := store.Snapshot()
	if err := store.SetTitles(g.DeriveTitles(ctx, d)); err != nil {
		return err
	}
	return store.SetTeamNames(g.DeriveTeamNames(ctx, d, teamCount))
}
