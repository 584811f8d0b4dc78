// Package finalize turns a curated draft into the immutable game record handed to storage.
package finalize

import (
	"jeop3/internal/core"
	"sort"
	"strings"
	"time"
)

// DiscardSet holds the ids of items the user flagged for removal. Membership means discard:
// everything not in the set is kept, so an empty set keeps the whole draft.
type DiscardSet map[string]struct{}

// NewDiscardSet builds a set from item ids.
func NewDiscardSet(ids ...string) DiscardSet {
	s := make(DiscardSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add flags id for discard.
func (s DiscardSet) Add(id string) {
	s[id] = struct{}{}
}

// Remove keeps id again.
func (s DiscardSet) Remove(id string) {
	delete(s, id)
}

// Toggle flips the discard flag of id and reports whether it is now discarded.
func (s DiscardSet) Toggle(id string) bool {
	if s.Has(id) {
		s.Remove(id)
		return false
	}
	s.Add(id)
	return true
}

// Has reports whether id is flagged for discard.
func (s DiscardSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs lists the flagged ids, sorted.
func (s DiscardSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Meta is everything finalization carries through without looking at it.
type Meta struct {
	ID        string
	Sources   []core.SourceProvenance
	Model     string
	CreatedAt time.Time
}

// Finalize projects draft onto a Game.
//
// A discarded category id removes the whole category. A discarded clue id removes only that clue.
// Categories left without clues are dropped. chosenTitle selects the title option; nil or an index
// outside the options means the first one. Every clue starts with Completed false.
func Finalize(draft core.DraftGame, chosenTitle *int, discarded DiscardSet, meta Meta) core.Game {
	title := chooseTitle(draft, chosenTitle)
	game := core.Game{
		ID:                 meta.ID,
		Title:              title.Title,
		Subtitle:           title.Subtitle,
		Categories:         make([]core.Category, 0, len(draft.Categories)),
		Rows:               core.CluesPerCategory,
		SuggestedTeamNames: append([]string(nil), draft.SuggestedTeamNames...),
		Metadata: core.GameMetadata{
			Theme:       draft.Theme,
			Difficulty:  draft.Difficulty,
			SourceMode:  draft.SourceMode,
			Sources:     append([]core.SourceProvenance(nil), meta.Sources...),
			Model:       meta.Model,
			GeneratedAt: meta.CreatedAt,
		},
		CreatedAt: meta.CreatedAt,
	}

	for i, cat := range draft.Categories {
		if discarded.Has(core.CategoryItemID(i)) {
			continue
		}
		out := core.Category{Title: cat.Title, ContentTopic: cat.ContentTopic, Clues: make([]core.Clue, 0, len(cat.Clues))}
		for j, clue := range cat.Clues {
			if discarded.Has(core.ClueItemID(i, j)) {
				continue
			}
			out.Clues = append(out.Clues, core.Clue{Value: clue.Value, Clue: clue.Clue, Response: clue.Response, Completed: false})
		}
		if len(out.Clues) == 0 {
			continue
		}
		game.Categories = append(game.Categories, out)
	}
	return game
}

func chooseTitle(draft core.DraftGame, chosen *int) core.TitleOption {
	if len(draft.TitleOptions) == 0 {
		theme := strings.TrimSpace(draft.Theme)
		if theme == "" {
			theme = "Trivia"
		}
		return core.TitleOption{Title: theme + " Night"}
	}
	idx := 0
	if chosen != nil && *chosen >= 0 && *chosen < len(draft.TitleOptions) {
		idx = *chosen
	}
	return draft.TitleOptions[idx]
}

// Provenance summarizes where a set of sources came from, for game metadata.
func Provenance(srcs []core.ContentSource) []core.SourceProvenance {
	out := make([]core.SourceProvenance, 0, len(srcs))
	for _, src := range srcs {
		p := core.SourceProvenance{Kind: src.Kind, Label: src.Label()}
		if src.Kind == core.SourceKindURL {
			p.URL = src.URL
		}
		out = append(out, p)
	}
	return out
}
