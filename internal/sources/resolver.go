package sources

import (
	"context"
	"jeop3/internal/core"
	"jeop3/internal/fetch"
	"jeop3/internal/logger"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FetchFailure records a url source whose content could not be fetched.
type FetchFailure struct {
	Source core.ContentSource
	Err    error
}

// AuthRequired reports whether the failure should prompt the user to sign in.
func (f FetchFailure) AuthRequired() bool {
	return fetch.IsAuthError(f.Err)
}

// Resolver fills in FetchedContent for url sources.
type Resolver struct {
	fetcher     fetch.ArticleFetcher
	concurrency int
	log         *slog.Logger
}

// NewResolver creates a resolver fetching at most concurrency URLs at once.
func NewResolver(fetcher fetch.ArticleFetcher, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{fetcher: fetcher, concurrency: concurrency, log: logger.Get()}
}

// Resolve returns a copy of srcs where every url source lacking content has been fetched.
// Sources that fail to fetch are returned unchanged, and therefore stay unusable, with a FetchFailure each.
// Failures are listed in source order.
func (r *Resolver) Resolve(ctx context.Context, srcs []core.ContentSource, authToken string) ([]core.ContentSource, []FetchFailure) {
	out := append([]core.ContentSource(nil), srcs...)
	errs := make([]error, len(out))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var mu sync.Mutex
	for i := range out {
		if out[i].Kind != core.SourceKindURL || strings.TrimSpace(out[i].FetchedContent) != "" {
			continue
		}
		g.Go(func() error {
			article, err := r.fetcher.Fetch(gctx, out[i].URL, authToken)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.Warn("Failed to fetch source URL", "source_id", out[i].ID, "url", out[i].URL, "auth_required", fetch.IsAuthError(err), "error", err)
				errs[i] = err
				return nil
			}
			out[i].FetchedContent = truncateRunes(article.Text, core.MaxPasteChars)
			r.log.Info("Fetched source URL", "source_id", out[i].ID, "url", out[i].URL, "chars", len(out[i].FetchedContent))
			return nil
		})
	}
	_ = g.Wait()

	var failures []FetchFailure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, FetchFailure{Source: out[i], Err: err})
		}
	}
	return out, failures
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
