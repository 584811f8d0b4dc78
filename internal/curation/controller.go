// Package curation implements the per-slot refinement operations a user runs on a draft before
// finalizing it.
package curation

import (
	"context"
	"jeop3/internal/core"
	"jeop3/internal/draft"
	"jeop3/internal/llm"
	"jeop3/internal/logger"
	"log/slog"
	"strings"
	"time"
)

// ErrOutOfRange is returned when an index does not address an item in the draft.
var ErrOutOfRange = draft.ErrOutOfRange

// Generator is the part of the generation client curation needs.
type Generator interface {
	ReplaceCategory(ctx context.Context, c llm.Context, d core.Difficulty) (core.GeneratedCategory, error)
	Clue(ctx context.Context, c llm.Context, d core.Difficulty) (core.GeneratedClue, error)
	CategoryTitle(ctx context.Context, c llm.Context, d core.Difficulty) (string, error)
	ClueText(ctx context.Context, c llm.Context, d core.Difficulty) (string, error)
}

// Controller runs regenerate, rewrite and edit operations against one draft store.
//
// AI operations return a nil pointer or empty string together with the error when generation
// fails; the draft is left exactly as it was. Operations on different slots may run concurrently.
// Overlapping operations on the same slot fail with draft.ErrSlotBusy.
type Controller struct {
	gen   Generator
	store *draft.Store
	log   *slog.Logger
}

// NewController creates a controller for store.
func NewController(gen Generator, store *draft.Store) *Controller {
	return &Controller{gen: gen, store: store, log: logger.Get()}
}

// Store returns the draft store the controller works on.
func (c *Controller) Store() *draft.Store {
	return c.store
}

// begin validates slot, marks it in flight and snapshots the draft in one step.
func (c *Controller) begin(slot draft.Slot) (func(), core.DraftGame, error) {
	return c.store.Acquire(slot)
}

func difficultyOf(d core.DraftGame) core.Difficulty {
	if d.Difficulty == "" {
		return core.DifficultyNormal
	}
	return d.Difficulty
}

func anchorTopic(cat core.GeneratedCategory) string {
	if t := strings.TrimSpace(cat.ContentTopic); t != "" {
		return t
	}
	return cat.Title
}

// RegenerateCategory replaces category i with a freshly generated one. Answers anywhere else on the
// board are excluded and the category keeps its source material and url.
func (c *Controller) RegenerateCategory(ctx context.Context, i int) (*core.GeneratedCategory, error) {
	slot := draft.CategorySlot(i)
	release, snap, err := c.begin(slot)
	if err != nil {
		return nil, err
	}
	defer release()

	old := snap.Categories[i]
	startTime := time.Now()
	cat, err := c.gen.ReplaceCategory(ctx, llm.Context{
		Theme:         snap.Theme,
		Count:         1,
		Material:      old.SourceMaterial,
		SourceURL:     old.SourceURL,
		CategoryTitle: old.Title,
		ContentTopic:  anchorTopic(old),
		Exclude:       snap.AllResponses(i, -1),
	}, difficultyOf(snap))
	if err != nil {
		c.log.Warn("Category regeneration failed, keeping current content", "category", i, "error", err)
		return nil, err
	}

	cat.SourceMaterial = old.SourceMaterial
	cat.SourceURL = old.SourceURL
	if err := c.store.ReplaceCategory(i, cat); err != nil {
		c.log.Info("Discarding regenerated category", "category", i, "reason", err)
		return nil, err
	}
	c.store.MarkRegenerated(slot.ID())
	c.log.Info("Category regenerated", "category", i, "title", cat.Title, "duration_ms", time.Since(startTime).Milliseconds())
	return &cat, nil
}

// RegenerateClue replaces clue j of category i. The clue keeps its value unless the model returns
// a different non-zero one.
func (c *Controller) RegenerateClue(ctx context.Context, i, j int) (*core.GeneratedClue, error) {
	slot := draft.ClueSlot(i, j)
	release, snap, err := c.begin(slot)
	if err != nil {
		return nil, err
	}
	defer release()

	cat := snap.Categories[i]
	current := cat.Clues[j]
	siblings := make([]core.GeneratedClue, 0, len(cat.Clues)-1)
	for k, clue := range cat.Clues {
		if k != j {
			siblings = append(siblings, clue)
		}
	}

	clue, err := c.gen.Clue(ctx, llm.Context{
		Theme:         snap.Theme,
		Material:      cat.SourceMaterial,
		SourceURL:     cat.SourceURL,
		CategoryTitle: cat.Title,
		ContentTopic:  anchorTopic(cat),
		OtherClues:    siblings,
		Current:       &current,
		Value:         current.Value,
		Exclude:       snap.AllResponses(i, j),
	}, difficultyOf(snap))
	if err != nil {
		c.log.Warn("Clue regeneration failed, keeping current clue", "category", i, "clue", j, "error", err)
		return nil, err
	}

	if clue.Value == 0 {
		clue.Value = current.Value
	}
	if err := c.store.ReplaceClue(i, j, clue); err != nil {
		c.log.Info("Discarding regenerated clue", "category", i, "clue", j, "reason", err)
		return nil, err
	}
	c.store.MarkRegenerated(slot.ID())
	return &clue, nil
}

// RewriteCategoryTitle generates a new title for category i, holding its clues fixed.
func (c *Controller) RewriteCategoryTitle(ctx context.Context, i int) (string, error) {
	slot := draft.CategorySlot(i)
	release, snap, err := c.begin(slot)
	if err != nil {
		return "", err
	}
	defer release()

	cat := snap.Categories[i]
	title, err := c.gen.CategoryTitle(ctx, llm.Context{
		Theme:         snap.Theme,
		CategoryTitle: cat.Title,
		ContentTopic:  anchorTopic(cat),
		OtherClues:    cat.Clues,
	}, difficultyOf(snap))
	if err != nil {
		c.log.Warn("Category title rewrite failed", "category", i, "error", err)
		return "", err
	}
	if err := c.store.SetCategoryTitle(i, title); err != nil {
		return "", err
	}
	c.store.MarkRegenerated(slot.ID())
	return title, nil
}

// RewriteClueText rewords clue j of category i, holding its answer fixed. Every other answer on the
// board is excluded so the new wording cannot give one of them away.
func (c *Controller) RewriteClueText(ctx context.Context, i, j int) (string, error) {
	slot := draft.ClueSlot(i, j)
	release, snap, err := c.begin(slot)
	if err != nil {
		return "", err
	}
	defer release()

	cat := snap.Categories[i]
	current := cat.Clues[j]
	text, err := c.gen.ClueText(ctx, llm.Context{
		Theme:         snap.Theme,
		CategoryTitle: cat.Title,
		ContentTopic:  anchorTopic(cat),
		Current:       &current,
		Value:         current.Value,
		Exclude:       snap.AllResponses(i, j),
	}, difficultyOf(snap))
	if err != nil {
		c.log.Warn("Clue rewrite failed", "category", i, "clue", j, "error", err)
		return "", err
	}
	if err := c.store.SetClueText(i, j, text); err != nil {
		return "", err
	}
	c.store.MarkRegenerated(slot.ID())
	return text, nil
}

// edit applies a synchronous change to slot, refusing while an AI operation on it is in flight.
func (c *Controller) edit(slot draft.Slot, fn func() error) error {
	release, err := c.store.Begin(slot)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// EditCategoryTitle sets the title of category i.
func (c *Controller) EditCategoryTitle(i int, title string) error {
	return c.edit(draft.CategorySlot(i), func() error {
		return c.store.SetCategoryTitle(i, strings.TrimSpace(title))
	})
}

// EditClue sets the wording of clue j in category i.
func (c *Controller) EditClue(i, j int, text string) error {
	return c.edit(draft.ClueSlot(i, j), func() error {
		return c.store.SetClueText(i, j, strings.TrimSpace(text))
	})
}

// EditResponse sets the answer of clue j in category i.
func (c *Controller) EditResponse(i, j int, response string) error {
	return c.edit(draft.ClueSlot(i, j), func() error {
		return c.store.SetResponse(i, j, strings.TrimSpace(response))
	})
}

// EditTeamName sets team name k.
func (c *Controller) EditTeamName(k int, name string) error {
	return c.store.SetTeamName(k, strings.TrimSpace(name))
}

// EditTitleOption sets title option k.
func (c *Controller) EditTitleOption(k int, opt core.TitleOption) error {
	opt.Title = strings.TrimSpace(opt.Title)
	opt.Subtitle = strings.TrimSpace(opt.Subtitle)
	return c.store.SetTitleOption(k, opt)
}
