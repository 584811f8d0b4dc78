package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Board shape. Changing these is a configuration concern; every package reads them from here.
const (
	BoardCategories  = 6      // Fixed board width
	CluesPerCategory = 5      // Rows per category
	MinPasteChars    = 40     // Minimum length of a pasted-text source
	MaxPasteChars    = 100000 // Maximum length of a pasted-text source
)

// ClueValues are the fixed board row values, one per row.
var ClueValues = []int{200, 400, 600, 800, 1000}

// SourceKind identifies where a content source gets its material from.
type SourceKind string

const (
	SourceKindTopic      SourceKind = "topic"
	SourceKindPastedText SourceKind = "pastedText"
	SourceKindURL        SourceKind = "url"
)

// Difficulty is the requested difficulty of generated clues.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps user input onto a Difficulty. Empty input means normal.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case "", DifficultyNormal:
		return DifficultyNormal, nil
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyHard:
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("unknown difficulty %q (expected easy, normal or hard)", s)
}

// SourceMode records whether a draft came from a single theme or a custom list of sources.
type SourceMode string

const (
	SourceModeSingle SourceMode = "single"
	SourceModeCustom SourceMode = "custom"
)

// ContentSource is a user-declared origin of material for category generation.
type ContentSource struct {
	ID             string     `json:"id"`                       // Opaque unique identifier
	Kind           SourceKind `json:"kind"`                     // topic, pastedText or url
	Topic          string     `json:"topic,omitempty"`          // Set when Kind is topic
	Content        string     `json:"content,omitempty"`        // Set when Kind is pastedText
	URL            string     `json:"url,omitempty"`            // Set when Kind is url
	FetchedContent string     `json:"fetchedContent,omitempty"` // Populated after a successful fetch of URL
	CategoryCount  int        `json:"categoryCount"`            // How many categories this source should yield
}

// GroundingText returns the text a generation request should be grounded in, or "" for topic-only sources.
func (s ContentSource) GroundingText() string {
	switch s.Kind {
	case SourceKindPastedText:
		return s.Content
	case SourceKindURL:
		return s.FetchedContent
	}
	return ""
}

// Usable reports whether the source can be sent to the generator.
// URL sources are unusable until their content has been fetched.
func (s ContentSource) Usable() bool {
	if s.Kind == SourceKindURL {
		return strings.TrimSpace(s.FetchedContent) != ""
	}
	return true
}

// Label is a short human-readable description used in logs and failure reports.
func (s ContentSource) Label() string {
	switch s.Kind {
	case SourceKindTopic:
		return "topic: " + s.Topic
	case SourceKindURL:
		return "url: " + s.URL
	case SourceKindPastedText:
		text := strings.Join(strings.Fields(s.Content), " ")
		if r := []rune(text); len(r) > 40 {
			text = string(r[:40]) + "..."
		}
		return "pasted text: " + text
	}
	return string(s.Kind)
}

// GeneratedClue is a single clue as returned by the generator.
type GeneratedClue struct {
	Value    int    `json:"value"`    // Board row value (200..1000)
	Clue     string `json:"clue"`     // The clue read to players
	Response string `json:"response"` // The expected response
}

// GeneratedCategory is one column of a generated board.
type GeneratedCategory struct {
	Title          string          `json:"title"`                    // Display name shown to players
	ContentTopic   string          `json:"contentTopic,omitempty"`   // Descriptive topic used as AI context
	Clues          []GeneratedClue `json:"clues"`                    // Usually CluesPerCategory entries
	SourceMaterial string          `json:"sourceMaterial,omitempty"` // Grounding text the category came from
	SourceURL      string          `json:"sourceUrl,omitempty"`      // URL the grounding text was fetched from
}

// Clone returns a deep copy of the category.
func (c GeneratedCategory) Clone() GeneratedCategory {
	out := c
	out.Clues = append([]GeneratedClue(nil), c.Clues...)
	return out
}

// Responses returns the category's answers in clue order.
func (c GeneratedCategory) Responses() []string {
	out := make([]string, 0, len(c.Clues))
	for _, clue := range c.Clues {
		out = append(out, clue.Response)
	}
	return out
}

// TitleOption is a candidate game title.
type TitleOption struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// DraftGame is the mutable, session-scoped payload of a draft store.
type DraftGame struct {
	Categories         []GeneratedCategory `json:"categories"`
	TitleOptions       []TitleOption       `json:"titleOptions"`
	SuggestedTeamNames []string            `json:"suggestedTeamNames"`
	Theme              string              `json:"theme"`
	Difficulty         Difficulty          `json:"difficulty"`
	SourceMode         SourceMode          `json:"sourceMode"`
}

// Clone returns a deep copy of the draft.
func (d DraftGame) Clone() DraftGame {
	out := d
	out.Categories = make([]GeneratedCategory, len(d.Categories))
	for i, cat := range d.Categories {
		out.Categories[i] = cat.Clone()
	}
	out.TitleOptions = append([]TitleOption(nil), d.TitleOptions...)
	out.SuggestedTeamNames = append([]string(nil), d.SuggestedTeamNames...)
	return out
}

// AllResponses collects every committed answer in the draft except the excluded slot.
// exceptCat < 0 excludes nothing. exceptClue < 0 excludes the whole category exceptCat.
func (d DraftGame) AllResponses(exceptCat, exceptClue int) []string {
	var out []string
	for i, cat := range d.Categories {
		for j, clue := range cat.Clues {
			if i == exceptCat && (exceptClue < 0 || j == exceptClue) {
				continue
			}
			if strings.TrimSpace(clue.Response) == "" {
				continue
			}
			out = append(out, clue.Response)
		}
	}
	return out
}

// CategoryItemID is the selection id of a whole category.
func CategoryItemID(catIndex int) string {
	return "cat-" + strconv.Itoa(catIndex)
}

// ClueItemID is the selection id of a single clue.
func ClueItemID(catIndex, clueIndex int) string {
	return fmt.Sprintf("cat-%d-clue-%d", catIndex, clueIndex)
}

// ParseItemID decodes a selection id. clueIndex is -1 for category ids.
func ParseItemID(id string) (catIndex, clueIndex int, err error) {
	rest, ok := strings.CutPrefix(id, "cat-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid item id %q", id)
	}
	catPart, cluePart, hasClue := strings.Cut(rest, "-clue-")
	catIndex, err = strconv.Atoi(catPart)
	if err != nil || catIndex < 0 {
		return 0, 0, fmt.Errorf("invalid item id %q", id)
	}
	if !hasClue {
		return catIndex, -1, nil
	}
	clueIndex, err = strconv.Atoi(cluePart)
	if err != nil || clueIndex < 0 {
		return 0, 0, fmt.Errorf("invalid item id %q", id)
	}
	return catIndex, clueIndex, nil
}

// Clue is a persisted clue. Completed is gameplay state and always starts false.
type Clue struct {
	Value     int    `json:"value"`
	Clue      string `json:"clue"`
	Response  string `json:"response"`
	Completed bool   `json:"completed"`
}

// Category is a persisted category.
type Category struct {
	Title        string `json:"title"`
	ContentTopic string `json:"contentTopic,omitempty"`
	Clues        []Clue `json:"clues"`
}

// SourceProvenance records which source a finished game drew from.
type SourceProvenance struct {
	Kind  SourceKind `json:"kind"`
	Label string     `json:"label"`
	URL   string     `json:"url,omitempty"`
}

// GameMetadata is carried through finalization unchanged.
type GameMetadata struct {
	Theme       string             `json:"theme"`
	Difficulty  Difficulty         `json:"difficulty"`
	SourceMode  SourceMode         `json:"sourceMode"`
	Sources     []SourceProvenance `json:"sources,omitempty"`
	Model       string             `json:"model,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// Game is the immutable finished artifact handed to storage.
type Game struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Subtitle           string       `json:"subtitle"`
	Categories         []Category   `json:"categories"`
	Rows               int          `json:"rows"`
	SuggestedTeamNames []string     `json:"suggestedTeamNames"`
	Metadata           GameMetadata `json:"metadata"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// GameMeta is the list projection of a stored game.
type GameMeta struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle"`
	CategoryCount int       `json:"categoryCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Meta projects a game onto its list entry.
func (g Game) Meta() GameMeta {
	return GameMeta{
		ID:            g.ID,
		Title:         g.Title,
		Subtitle:      g.Subtitle,
		CategoryCount: len(g.Categories),
		CreatedAt:     g.CreatedAt,
	}
}

// ToDraft seeds a new draft from a stored game so it can re-enter curation.
// Completion flags are dropped; provenance is not stored per category and stays empty.
func (g Game) ToDraft() DraftGame {
	d := DraftGame{
		TitleOptions:       []TitleOption{{Title: g.Title, Subtitle: g.Subtitle}},
		SuggestedTeamNames: append([]string(nil), g.SuggestedTeamNames...),
		Theme:              g.Metadata.Theme,
		Difficulty:         g.Metadata.Difficulty,
		SourceMode:         g.Metadata.SourceMode,
	}
	for _, cat := range g.Categories {
		gc := GeneratedCategory{Title: cat.Title, ContentTopic: cat.ContentTopic}
		for _, clue := range cat.Clues {
			gc.Clues = append(gc.Clues, GeneratedClue{Value: clue.Value, Clue: clue.Clue, Response: clue.Response})
		}
		d.Categories = append(d.Categories, gc)
	}
	return d
}
