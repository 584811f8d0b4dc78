// Package generation fans category generation out across content sources and merges the results.
package generation

import (
	"context"
	"errors"
	"fmt"
	"jeop3/internal/core"
	"jeop3/internal/llm"
	"jeop3/internal/logger"
	"jeop3/internal/sources"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrTotalFailure means no source produced a single category.
	ErrTotalFailure = errors.New("no categories were generated")
	// ErrSourceUnusable means a url source reached generation without fetched content.
	ErrSourceUnusable = errors.New("source has no content to generate from")
)

// CategoryGenerator is the part of the generation client the orchestrator needs.
type CategoryGenerator interface {
	Categories(ctx context.Context, c llm.Context, d core.Difficulty) ([]core.GeneratedCategory, error)
}

// Options are the request-wide settings for a generation run.
type Options struct {
	Theme      string
	Difficulty core.Difficulty
}

// SourceFailure is a source that produced nothing, with the reason.
type SourceFailure struct {
	Source core.ContentSource
	Err    error
}

// Result is the merged output of a run. Categories are in source order.
type Result struct {
	Categories []core.GeneratedCategory
	Failures   []SourceFailure
}

// TotalFailureError is returned when every source failed. It carries every per-source failure.
type TotalFailureError struct {
	Failures []SourceFailure
}

func (e *TotalFailureError) Error() string {
	if len(e.Failures) == 0 {
		return ErrTotalFailure.Error()
	}
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("%s: %v", f.Source.Label(), f.Err))
	}
	return fmt.Sprintf("%s from %d source(s): %s", ErrTotalFailure, len(e.Failures), strings.Join(reasons, "; "))
}

func (e *TotalFailureError) Unwrap() error { return ErrTotalFailure }

// Orchestrator turns content sources into categories.
type Orchestrator struct {
	gen   CategoryGenerator
	sched Scheduler
	log   *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil scheduler means Sequential.
func NewOrchestrator(gen CategoryGenerator, sched Scheduler) *Orchestrator {
	if sched == nil {
		sched = Sequential{}
	}
	return &Orchestrator{gen: gen, sched: sched, log: logger.Get()}
}

type slot struct {
	categories []core.GeneratedCategory
	err        error
}

// GenerateFromSources generates up to CategoryCount categories per source. A failing source is
// reported in Result.Failures and does not stop its siblings. Only when no source yields a category
// does the call fail, with a *TotalFailureError.
func (o *Orchestrator) GenerateFromSources(ctx context.Context, srcs []core.ContentSource, opts Options) (*Result, error) {
	if len(srcs) == 0 {
		return nil, sources.ErrNoSources
	}
	if opts.Difficulty == "" {
		opts.Difficulty = core.DifficultyNormal
	}

	startTime := time.Now()
	o.log.Info("Starting category generation", "sources", len(srcs), "categories_requested", sources.TotalCategories(srcs), "difficulty", opts.Difficulty)

	slots := make([]slot, len(srcs))
	// answers committed by finished sources, passed to later sources as exclusions
	var mu sync.Mutex
	var committed []string

	o.sched.Run(ctx, len(srcs), func(ctx context.Context, i int) {
		src := srcs[i]
		if err := ctx.Err(); err != nil {
			slots[i].err = err
			return
		}
		if !src.Usable() {
			slots[i].err = fmt.Errorf("%w: %s was not fetched", ErrSourceUnusable, src.URL)
			return
		}

		mu.Lock()
		exclude := append([]string(nil), committed...)
		mu.Unlock()

		cats, err := o.generateSource(ctx, src, opts, exclude)
		if err != nil {
			slots[i].err = err
			return
		}
		slots[i].categories = cats

		mu.Lock()
		for _, cat := range cats {
			committed = append(committed, cat.Responses()...)
		}
		mu.Unlock()
	})

	result := &Result{}
	for i, s := range slots {
		if s.err != nil {
			o.log.Warn("Source generation failed", "source_id", srcs[i].ID, "source", srcs[i].Label(), "error", s.err)
			result.Failures = append(result.Failures, SourceFailure{Source: srcs[i], Err: s.err})
			continue
		}
		result.Categories = append(result.Categories, s.categories...)
	}

	if len(result.Categories) == 0 {
		o.log.Error("Generation produced no categories", "error", ErrTotalFailure, "failures", len(result.Failures))
		return nil, &TotalFailureError{Failures: result.Failures}
	}

	o.log.Info("Category generation completed",
		"categories", len(result.Categories),
		"failed_sources", len(result.Failures),
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return result, nil
}

func (o *Orchestrator) generateSource(ctx context.Context, src core.ContentSource, opts Options, exclude []string) ([]core.GeneratedCategory, error) {
	theme := opts.Theme
	if src.Kind == core.SourceKindTopic {
		theme = src.Topic
	}
	material := src.GroundingText()

	cats, err := o.gen.Categories(ctx, llm.Context{
		Theme:     theme,
		Count:     src.CategoryCount,
		Material:  material,
		SourceURL: src.URL,
		Exclude:   exclude,
	}, opts.Difficulty)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("%w: empty category list", llm.ErrMalformedResult)
	}

	if len(cats) > src.CategoryCount {
		cats = cats[:src.CategoryCount]
	} else if len(cats) < src.CategoryCount {
		o.log.Warn("Source returned fewer categories than requested", "source_id", src.ID, "requested", src.CategoryCount, "received", len(cats))
	}

	var sourceURL string
	if src.Kind == core.SourceKindURL {
		sourceURL = src.URL
	}
	out := make([]core.GeneratedCategory, len(cats))
	for i, cat := range cats {
		cat = cat.Clone()
		cat.SourceMaterial = material
		cat.SourceURL = sourceURL
		out[i] = cat
	}
	return out, nil
}

// GenerateSingle is single-source mode: one source filling the whole board. material, when set,
// grounds every category; url records where it came from.
func (o *Orchestrator) GenerateSingle(ctx context.Context, theme, material, url string, d core.Difficulty) (*Result, error) {
	src := SingleSource(theme, material, url)
	return o.GenerateFromSources(ctx, []core.ContentSource{src}, Options{Theme: theme, Difficulty: d})
}

// SingleSource builds the one source used by single-source mode.
func SingleSource(theme, material, url string) core.ContentSource {
	src := core.ContentSource{ID: "single", CategoryCount: core.BoardCategories}
	switch {
	case url != "":
		src.Kind = core.SourceKindURL
		src.URL = url
		src.FetchedContent = material
	case strings.TrimSpace(material) != "":
		src.Kind = core.SourceKindPastedText
		src.Content = material
	default:
		src.Kind = core.SourceKindTopic
		src.Topic = theme
	}
	return src
}
