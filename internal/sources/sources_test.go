package sources

import (
	"context"
	"errors"
	"jeop3/internal/core"
	"jeop3/internal/fetch"
	"strings"
	"sync"
	"testing"
)

func paste(n int, count int) core.ContentSource {
	return core.ContentSource{Kind: core.SourceKindPastedText, Content: strings.Repeat("a", n), CategoryCount: count}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		src     core.ContentSource
		wantErr string
	}{
		{name: "topic ok", src: core.ContentSource{Kind: core.SourceKindTopic, Topic: "Roman Empire", CategoryCount: 4}},
		{name: "empty topic", src: core.ContentSource{Kind: core.SourceKindTopic, Topic: "  ", CategoryCount: 1}, wantErr: "topic must not be empty"},
		{name: "paste too short", src: paste(20, 1), wantErr: "at least 40 characters"},
		{name: "paste exactly min", src: paste(40, 1)},
		{name: "paste too long", src: paste(core.MaxPasteChars+1, 1), wantErr: "at most 100000 characters"},
		{name: "url ok", src: core.ContentSource{Kind: core.SourceKindURL, URL: "https://example.com/a", CategoryCount: 2}},
		{name: "url ftp", src: core.ContentSource{Kind: core.SourceKindURL, URL: "ftp://example.com/a", CategoryCount: 2}, wantErr: "http or https"},
		{name: "url no host", src: core.ContentSource{Kind: core.SourceKindURL, URL: "https://", CategoryCount: 2}, wantErr: "host"},
		{name: "url relative", src: core.ContentSource{Kind: core.SourceKindURL, URL: "example.com/page", CategoryCount: 2}, wantErr: "http or https"},
		{name: "zero count", src: core.ContentSource{Kind: core.SourceKindTopic, Topic: "x", CategoryCount: 0}, wantErr: "between 1 and 6"},
		{name: "count too big", src: core.ContentSource{Kind: core.SourceKindTopic, Topic: "x", CategoryCount: 7}, wantErr: "between 1 and 6"},
		{name: "unknown kind", src: core.ContentSource{Kind: "video", CategoryCount: 1}, wantErr: "unknown source kind"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.src)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid source, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tc.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidSource) {
				t.Error("Expected error to wrap ErrInvalidSource")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestBudgetRejectsOverflow(t *testing.T) {
	b := NewBudget()
	first, err := b.Add(core.ContentSource{Kind: core.SourceKindTopic, Topic: "Roman Empire", CategoryCount: 4})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if first.ID == "" {
		t.Error("Expected an id to be assigned")
	}
	if b.Remaining() != 2 {
		t.Errorf("Expected 2 remaining, got %d", b.Remaining())
	}

	_, err = b.Add(paste(60, 3))
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Expected ErrBudgetExceeded, got %v", err)
	}
	if !errors.Is(err, ErrInvalidSource) {
		t.Error("Expected budget error to also be a validation error")
	}
	if b.Len() != 1 {
		t.Errorf("Rejected source must not be stored, have %d", b.Len())
	}

	if _, err := b.Add(paste(60, 2)); err != nil {
		t.Fatalf("Expected exact fill to succeed: %v", err)
	}
	if b.Remaining() != 0 {
		t.Errorf("Expected budget to be full, got %d remaining", b.Remaining())
	}

	if err := b.Remove(first.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if b.Remaining() != 4 {
		t.Errorf("Expected 4 remaining after removal, got %d", b.Remaining())
	}
	if err := b.Remove("missing"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("Expected ErrSourceNotFound, got %v", err)
	}
}

// Every accepted set stays within the board width regardless of the order counts are offered in.
func TestBudgetInvariant(t *testing.T) {
	counts := []int{1, 2, 3, 4, 5, 6, 2, 1, 3, 1, 1, 6, 2}
	for start := range counts {
		b := NewBudget()
		for k := 0; k < len(counts); k++ {
			c := counts[(start+k)%len(counts)]
			_, _ = b.Add(core.ContentSource{Kind: core.SourceKindTopic, Topic: "t", CategoryCount: c})
			if total := TotalCategories(b.Sources()); total > core.BoardCategories {
				t.Fatalf("Budget accepted %d categories", total)
			}
		}
		if err := ValidateSet(b.Sources()); err != nil {
			t.Errorf("Accepted set failed re-validation: %v", err)
		}
	}
}

func TestBudgetPreservesOrder(t *testing.T) {
	b := NewBudget()
	for _, topic := range []string{"alpha", "beta", "gamma"} {
		if _, err := b.Add(core.ContentSource{Kind: core.SourceKindTopic, Topic: topic, CategoryCount: 1}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	got := b.Sources()
	for i, topic := range []string{"alpha", "beta", "gamma"} {
		if got[i].Topic != topic {
			t.Errorf("Position %d: expected %s, got %s", i, topic, got[i].Topic)
		}
	}
}

func TestValidateSet(t *testing.T) {
	if err := ValidateSet(nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("Expected ErrNoSources, got %v", err)
	}

	over := []core.ContentSource{
		{ID: "a", Kind: core.SourceKindTopic, Topic: "a", CategoryCount: 4},
		{ID: "b", Kind: core.SourceKindTopic, Topic: "b", CategoryCount: 3},
	}
	if err := ValidateSet(over); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Expected ErrBudgetExceeded, got %v", err)
	}

	bad := []core.ContentSource{paste(10, 1)}
	if err := ValidateSet(bad); err == nil || !strings.Contains(err.Error(), "at least 40") {
		t.Errorf("Expected per-source validation error, got %v", err)
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
	token string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL, authToken string) (fetch.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	f.token = authToken
	if err, ok := f.errs[rawURL]; ok {
		return fetch.Article{}, err
	}
	return fetch.Article{URL: rawURL, Text: f.pages[rawURL]}, nil
}

func TestResolver(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]string{"https://ok.example/a": "The Library of Alexandria was one of the largest libraries."},
		errs: map[string]error{
			"https://private.example/b": fetch.NewFetchError("https://private.example/b", 401, "Unauthorized"),
			"https://down.example/c":    fetch.NewFetchError("https://down.example/c", 503, "Service Unavailable"),
		},
	}
	srcs := []core.ContentSource{
		{ID: "1", Kind: core.SourceKindURL, URL: "https://ok.example/a", CategoryCount: 1},
		{ID: "2", Kind: core.SourceKindTopic, Topic: "Volcanoes", CategoryCount: 1},
		{ID: "3", Kind: core.SourceKindURL, URL: "https://private.example/b", CategoryCount: 1},
		{ID: "4", Kind: core.SourceKindURL, URL: "https://down.example/c", CategoryCount: 1},
		{ID: "5", Kind: core.SourceKindURL, URL: "https://cached.example/d", FetchedContent: "already here", CategoryCount: 1},
	}

	resolved, failures := NewResolver(fetcher, 2).Resolve(context.Background(), srcs, "tok")

	if len(fetcher.calls) != 3 {
		t.Errorf("Expected 3 fetches (cached and topic sources skipped), got %v", fetcher.calls)
	}
	if fetcher.token != "tok" {
		t.Errorf("Expected auth token to be forwarded, got %q", fetcher.token)
	}
	if !resolved[0].Usable() || resolved[0].FetchedContent == "" {
		t.Error("Expected first url source to be usable after resolving")
	}
	if resolved[2].Usable() || resolved[3].Usable() {
		t.Error("Failed url sources must stay unusable")
	}
	if resolved[4].FetchedContent != "already here" {
		t.Error("Already fetched content must be kept")
	}
	if srcs[0].FetchedContent != "" {
		t.Error("Resolve must not mutate its input")
	}

	if len(failures) != 2 {
		t.Fatalf("Expected 2 failures, got %d", len(failures))
	}
	if failures[0].Source.ID != "3" || failures[1].Source.ID != "4" {
		t.Errorf("Expected failures in source order, got %s, %s", failures[0].Source.ID, failures[1].Source.ID)
	}
	if !failures[0].AuthRequired() {
		t.Error("Expected 401 failure to require auth")
	}
	if failures[1].AuthRequired() {
		t.Error("Expected 503 failure not to require auth")
	}
}

func TestResolverTruncatesLongPages(t *testing.T) {
	long := strings.Repeat("b", core.MaxPasteChars+500)
	fetcher := &fakeFetcher{pages: map[string]string{"https://long.example": long}}
	resolved, failures := NewResolver(fetcher, 1).Resolve(context.Background(), []core.ContentSource{
		{ID: "1", Kind: core.SourceKindURL, URL: "https://long.example", CategoryCount: 1},
	}, "")
	if len(failures) != 0 {
		t.Fatalf("Unexpected failures: %v", failures)
	}
	if len(resolved[0].FetchedContent) != core.MaxPasteChars {
		t.Errorf("Expected content truncated to %d, got %d", core.MaxPasteChars, len(resolved[0].FetchedContent))
	}
}
