package naming

import (
	"context"
	"errors"
	"fmt"
	"jeop3/internal/core"
	"jeop3/internal/draft"
	"jeop3/internal/llm"
	"reflect"
	"strings"
	"testing"
)

type fakeNamer struct {
	titles    []core.TitleOption
	titlesErr error
	names     []string
	namesErr  error
	titleReqs []llm.Context
	teamReqs  []llm.Context
}

func (f *fakeNamer) Titles(ctx context.Context, c llm.Context) ([]core.TitleOption, error) {
	f.titleReqs = append(f.titleReqs, c)
	return f.titles, f.titlesErr
}

func (f *fakeNamer) TeamNames(ctx context.Context, c llm.Context) ([]string, error) {
	f.teamReqs = append(f.teamReqs, c)
	return f.names, f.namesErr
}

func board(theme string, categories int) core.DraftGame {
	d := core.DraftGame{Theme: theme}
	for i := 0; i < categories; i++ {
		cat := core.GeneratedCategory{Title: fmt.Sprintf("Cat %d", i)}
		for j, v := range core.ClueValues {
			cat.Clues = append(cat.Clues, core.GeneratedClue{Value: v, Clue: fmt.Sprintf("clue %d-%d", i, j), Response: fmt.Sprintf("resp %d-%d", i, j)})
		}
		d.Categories = append(d.Categories, cat)
	}
	return d
}

func TestSummarizeContextKeepsTwoCluesPerCategory(t *testing.T) {
	summary := SummarizeContext(board("Space", 6))

	for i := 0; i < 6; i++ {
		if !strings.Contains(summary, fmt.Sprintf("Cat %d:", i)) {
			t.Errorf("Summary should list category %d", i)
		}
		for j := 0; j < 2; j++ {
			if !strings.Contains(summary, fmt.Sprintf("clue %d-%d -> resp %d-%d", i, j, i, j)) {
				t.Errorf("Summary should include clue %d-%d", i, j)
			}
		}
		for j := 2; j < 5; j++ {
			if strings.Contains(summary, fmt.Sprintf("clue %d-%d", i, j)) {
				t.Errorf("Summary must not include clue %d-%d", i, j)
			}
		}
	}
}

func TestDeriveTitles(t *testing.T) {
	testCases := []struct {
		name     string
		namer    *fakeNamer
		expected []core.TitleOption
	}{
		{
			name:     "generated options are returned",
			namer:    &fakeNamer{titles: []core.TitleOption{{Title: "Orbit Night", Subtitle: "Way out there"}}},
			expected: []core.TitleOption{{Title: "Orbit Night", Subtitle: "Way out there"}},
		},
		{
			name:     "error falls back to theme title",
			namer:    &fakeNamer{titlesErr: errors.New("model down")},
			expected: []core.TitleOption{{Title: "Space Night"}},
		},
		{
			name:     "no options falls back to theme title",
			namer:    &fakeNamer{},
			expected: []core.TitleOption{{Title: "Space Night"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewGenerator(tc.namer).DeriveTitles(context.Background(), board("Space", 2))
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
			if len(tc.namer.titleReqs) != 1 || tc.namer.titleReqs[0].Summary == "" {
				t.Errorf("Expected one request carrying a summary, got %v", tc.namer.titleReqs)
			}
		})
	}
}

func TestDefaultTitleWithoutTheme(t *testing.T) {
	if got := DefaultTitle("  ").Title; got != "Trivia Night" {
		t.Errorf("Expected Trivia Night, got %q", got)
	}
}

func TestDeriveTeamNames(t *testing.T) {
	testCases := []struct {
		name     string
		namer    *fakeNamer
		count    int
		expected []string
	}{
		{
			name:     "error falls back to defaults",
			namer:    &fakeNamer{namesErr: errors.New("timeout")},
			count:    0,
			expected: []string{"Team 1", "Team 2", "Team 3", "Team 4"},
		},
		{
			name:     "extra names are dropped",
			namer:    &fakeNamer{names: []string{"A", "B", "C", "D", "E"}},
			count:    3,
			expected: []string{"A", "B", "C"},
		},
		{
			name:     "missing names are padded",
			namer:    &fakeNamer{names: []string{"Rockets"}},
			count:    3,
			expected: []string{"Rockets", "Team 2", "Team 3"},
		},
		{
			name:     "empty result falls back",
			namer:    &fakeNamer{names: []string{}},
			count:    2,
			expected: []string{"Team 1", "Team 2"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewGenerator(tc.namer).DeriveTeamNames(context.Background(), board("Space", 6), tc.count)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestDeriveTeamNamesUsesAtMostThreeTitles(t *testing.T) {
	namer := &fakeNamer{names: []string{"A", "B", "C", "D"}}
	NewGenerator(namer).DeriveTeamNames(context.Background(), board("Space", 6), 4)

	if len(namer.teamReqs) != 1 {
		t.Fatalf("Expected one team request, got %d", len(namer.teamReqs))
	}
	req := namer.teamReqs[0]
	if !reflect.DeepEqual(req.CategoryTitles, []string{"Cat 0", "Cat 1", "Cat 2"}) {
		t.Errorf("Expected the first three titles, got %v", req.CategoryTitles)
	}
	if req.Count != 4 || req.Theme != "Space" {
		t.Errorf("Unexpected request %+v", req)
	}
}

func TestEnrichWritesDraft(t *testing.T) {
	store := draft.New(board("History", 6))
	namer := &fakeNamer{titlesErr: errors.New("boom"), names: []string{"Pharaohs", "Caesars", "Khans", "Tsars"}}

	if err := NewGenerator(namer).Enrich(context.Background(), store, 4); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	snap := store.Snapshot()
	if len(snap.TitleOptions) != 1 || snap.TitleOptions[0].Title != "History Night" {
		t.Errorf("Expected fallback title, got %v", snap.TitleOptions)
	}
	if !reflect.DeepEqual(snap.SuggestedTeamNames, namer.names) {
		t.Errorf("Expected generated team names, got %v", snap.SuggestedTeamNames)
	}
}

func TestEnrichClosedDraft(t *testing.T) {
	store := draft.New(board("History", 1))
	store.Close()
	err := NewGenerator(&fakeNamer{}).Enrich(context.Background(), store, 4)
	if !errors.Is(err, draft.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
