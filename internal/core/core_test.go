package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestContentSourceGroundingText(t *testing.T) {
	testCases := []struct {
		name     string
		source   ContentSource
		expected string
		usable   bool
	}{
		{
			name:     "topic has no grounding",
			source:   ContentSource{Kind: SourceKindTopic, Topic: "Roman Empire", FetchedContent: "ignored"},
			expected: "",
			usable:   true,
		},
		{
			name:     "pasted text grounds on content",
			source:   ContentSource{Kind: SourceKindPastedText, Content: "some pasted text"},
			expected: "some pasted text",
			usable:   true,
		},
		{
			name:     "unfetched url is not usable",
			source:   ContentSource{Kind: SourceKindURL, URL: "https://example.com"},
			expected: "",
			usable:   false,
		},
		{
			name:     "fetched url grounds on fetched content",
			source:   ContentSource{Kind: SourceKindURL, URL: "https://example.com", FetchedContent: "article body"},
			expected: "article body",
			usable:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.source.GroundingText(); got != tc.expected {
				t.Errorf("Expected grounding %q, got %q", tc.expected, got)
			}
			if got := tc.source.Usable(); got != tc.usable {
				t.Errorf("Expected usable=%v, got %v", tc.usable, got)
			}
		})
	}
}

func TestParseItemID(t *testing.T) {
	testCases := []struct {
		id        string
		catIndex  int
		clueIndex int
		wantErr   bool
	}{
		{id: "cat-0", catIndex: 0, clueIndex: -1},
		{id: "cat-12", catIndex: 12, clueIndex: -1},
		{id: "cat-2-clue-3", catIndex: 2, clueIndex: 3},
		{id: "category-2", wantErr: true},
		{id: "cat-x", wantErr: true},
		{id: "cat-1-clue-", wantErr: true},
		{id: "cat--1", wantErr: true},
	}

	for _, tc := range testCases {
		cat, clue, err := ParseItemID(tc.id)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Expected error for %q", tc.id)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for %q: %v", tc.id, err)
			continue
		}
		if cat != tc.catIndex || clue != tc.clueIndex {
			t.Errorf("ParseItemID(%q) = (%d, %d), expected (%d, %d)", tc.id, cat, clue, tc.catIndex, tc.clueIndex)
		}
	}

	if CategoryItemID(4) != "cat-4" {
		t.Errorf("Expected cat-4, got %s", CategoryItemID(4))
	}
	if ClueItemID(1, 2) != "cat-1-clue-2" {
		t.Errorf("Expected cat-1-clue-2, got %s", ClueItemID(1, 2))
	}
}

func TestParseDifficulty(t *testing.T) {
	for input, expected := range map[string]Difficulty{"": DifficultyNormal, "EASY": DifficultyEasy, " hard ": DifficultyHard} {
		got, err := ParseDifficulty(input)
		if err != nil {
			t.Fatalf("ParseDifficulty(%q) failed: %v", input, err)
		}
		if got != expected {
			t.Errorf("ParseDifficulty(%q) = %s, expected %s", input, got, expected)
		}
	}
	if _, err := ParseDifficulty("impossible"); err == nil {
		t.Error("Expected error for unknown difficulty")
	}
}

func TestDraftCloneIsDeep(t *testing.T) {
	draft := DraftGame{
		Categories: []GeneratedCategory{{
			Title: "Capitals",
			Clues: []GeneratedClue{{Value: 200, Clue: "Capital of France", Response: "Paris"}},
		}},
		TitleOptions:       []TitleOption{{Title: "Geo Night"}},
		SuggestedTeamNames: []string{"Atlas"},
	}

	clone := draft.Clone()
	clone.Categories[0].Clues[0].Response = "Lyon"
	clone.TitleOptions[0].Title = "Changed"
	clone.SuggestedTeamNames[0] = "Changed"

	if draft.Categories[0].Clues[0].Response != "Paris" {
		t.Error("Clone shares clue storage with the original")
	}
	if draft.TitleOptions[0].Title != "Geo Night" {
		t.Error("Clone shares title options with the original")
	}
	if draft.SuggestedTeamNames[0] != "Atlas" {
		t.Error("Clone shares team names with the original")
	}
}

func TestAllResponsesExclusions(t *testing.T) {
	draft := DraftGame{Categories: []GeneratedCategory{
		{Clues: []GeneratedClue{{Response: "A"}, {Response: "B"}}},
		{Clues: []GeneratedClue{{Response: "C"}, {Response: ""}, {Response: "D"}}},
	}}

	all := draft.AllResponses(-1, -1)
	if len(all) != 4 {
		t.Fatalf("Expected 4 responses, got %v", all)
	}

	withoutCat := draft.AllResponses(0, -1)
	if len(withoutCat) != 2 || withoutCat[0] != "C" || withoutCat[1] != "D" {
		t.Errorf("Expected [C D], got %v", withoutCat)
	}

	withoutClue := draft.AllResponses(1, 2)
	if len(withoutClue) != 3 || withoutClue[2] != "C" {
		t.Errorf("Expected [A B C], got %v", withoutClue)
	}
}

func TestGameToDraftRoundTrip(t *testing.T) {
	game := Game{
		ID:       "game-1",
		Title:    "History Night",
		Subtitle: "Empires",
		Categories: []Category{{
			Title: "Rome",
			Clues: []Clue{{Value: 200, Clue: "First emperor", Response: "Augustus", Completed: true}},
		}},
		Rows:               CluesPerCategory,
		SuggestedTeamNames: []string{"Legion"},
		Metadata:           GameMetadata{Theme: "History", Difficulty: DifficultyHard, SourceMode: SourceModeSingle},
		CreatedAt:          time.Now(),
	}

	draft := game.ToDraft()
	if draft.Theme != "History" || draft.Difficulty != DifficultyHard {
		t.Errorf("Unexpected draft metadata: %+v", draft)
	}
	if len(draft.TitleOptions) != 1 || draft.TitleOptions[0].Title != "History Night" {
		t.Errorf("Expected stored title as the only option, got %+v", draft.TitleOptions)
	}
	if draft.Categories[0].Clues[0].Response != "Augustus" {
		t.Errorf("Expected clue content to carry over, got %+v", draft.Categories[0].Clues[0])
	}

	meta := game.Meta()
	if meta.CategoryCount != 1 || meta.ID != "game-1" {
		t.Errorf("Unexpected meta projection: %+v", meta)
	}
}

func TestContentSourceLabel(t *testing.T) {
	testCases := []struct {
		name string
		src  ContentSource
		want string
	}{
		{"topic", ContentSource{Kind: SourceKindTopic, Topic: "Volcanoes"}, "topic: Volcanoes"},
		{"url", ContentSource{Kind: SourceKindURL, URL: "https://example.com"}, "url: https://example.com"},
		{"short paste", ContentSource{Kind: SourceKindPastedText, Content: "  rivers\n and   lakes "}, "pasted text: rivers and lakes"},
		{"long paste", ContentSource{Kind: SourceKindPastedText, Content: strings.Repeat("a", 50)}, "pasted text: " + strings.Repeat("a", 40) + "..."},
		{"multibyte paste", ContentSource{Kind: SourceKindPastedText, Content: strings.Repeat("é", 50)}, "pasted text: " + strings.Repeat("é", 40) + "..."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.src.Label()
			if got != tc.want {
				t.Errorf("Label() = %q, want %q", got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Label() returned invalid UTF-8: %q", got)
			}
		})
	}
}

func TestJSONKeysAreCamelCase(t *testing.T) {
	testCases := []struct {
		name    string
		value   any
		want    []string
		unwants []string
	}{
		{
			name:    "content source",
			value:   ContentSource{ID: "s1", Kind: SourceKindURL, URL: "https://example.com", FetchedContent: "body", CategoryCount: 2},
			want:    []string{"fetchedContent", "categoryCount"},
			unwants: []string{"fetched_content", "category_count"},
		},
		{
			name:    "generated category",
			value:   GeneratedCategory{Title: "T", ContentTopic: "topic", SourceMaterial: "text", SourceURL: "https://example.com"},
			want:    []string{"contentTopic", "sourceMaterial", "sourceUrl"},
			unwants: []string{"source_material", "source_url"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.value)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			for _, key := range tc.want {
				if _, ok := fields[key]; !ok {
					t.Errorf("Expected key %q in %s", key, data)
				}
			}
			for _, key := range tc.unwants {
				if _, ok := fields[key]; ok {
					t.Errorf("Unexpected key %q in %s", key, data)
				}
			}
		})
	}
}
