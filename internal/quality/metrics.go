package quality

import (
	"regexp"
	"strings"
)

// IssueKind classifies a board problem.
type IssueKind string

const (
	IssueMissingTitle    IssueKind = "missing_title"
	IssueMissingTopic    IssueKind = "missing_topic"
	IssueClueCount       IssueKind = "clue_count"
	IssueValueSet        IssueKind = "value_set"
	IssueMissingClue     IssueKind = "missing_clue"
	IssueMissingResponse IssueKind = "missing_response"
	IssueDuplicate       IssueKind = "duplicate_response"
	IssueAnswerInClue    IssueKind = "answer_in_clue"
	IssueVagueClue       IssueKind = "vague_clue"
)

// Issue is one finding, addressed by item id.
type Issue struct {
	ItemID  string    `json:"item_id"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// Report contains all quality metrics for a board
type Report struct {
	CategoryCount      int `json:"category_count"`
	CompleteCategories int `json:"complete_categories"` // categories with a full, well-formed column
	TotalClues         int `json:"total_clues"`

	DuplicateResponses []string `json:"duplicate_responses,omitempty"`
	AnswerLeaks        int      `json:"answer_leaks"`
	VagueClues         int      `json:"vague_clues"`

	// Quality assessment
	Grade  string  `json:"grade"` // A/B/C/D
	Issues []Issue `json:"issues"`
	Passed bool    `json:"passed"` // Advisory only
}

// Thresholds defines minimum acceptable quality levels
type Thresholds struct {
	MinClueWords    int `yaml:"min_clue_words"`     // Default: 4
	MaxDuplicates   int `yaml:"max_duplicates"`     // Default: 0
	MaxAnswerLeaks  int `yaml:"max_answer_leaks"`   // Default: 0
	MaxVagueClues   int `yaml:"max_vague_clues"`    // Default: 3
	MinCompletePct  int `yaml:"min_complete_pct"`   // Default: 100
	GradeBMaxIssues int `yaml:"grade_b_max_issues"` // Default: 3
	GradeCMaxIssues int `yaml:"grade_c_max_issues"` // Default: 8
}

// DefaultThresholds returns the default quality thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinClueWords:    4,
		MaxDuplicates:   0,
		MaxAnswerLeaks:  0,
		MaxVagueClues:   3,
		MinCompletePct:  100,
		GradeBMaxIssues: 3,
		GradeCMaxIssues: 8,
	}
}

// VaguePhrases are clue openings that give players nothing to work with
var VaguePhrases = []string{
	"this thing",
	"something that",
	"it is a",
	"this is a",
	"a type of",
	"a kind of",
	"one of the",
}

// NormalizeResponse folds an answer for duplicate comparison.
func NormalizeResponse(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"what is ", "what are ", "who is ", "who are ", "where is "} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSuffix(s, "?")
	for _, article := range []string{"the ", "a ", "an "} {
		s = strings.TrimPrefix(s, article)
	}
	return strings.Join(strings.Fields(s), " ")
}

// DetectVaguePhrases lists the vague phrases found in a clue
func DetectVaguePhrases(text string) []string {
	textLower := strings.ToLower(text)
	var found []string
	for _, phrase := range VaguePhrases {
		if strings.Contains(textLower, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}

var wordBoundary = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// LeaksAnswer reports whether the clue text spells out its own response.
// Single-letter and very short responses are ignored since they match too easily.
func LeaksAnswer(clue, response string) bool {
	answer := NormalizeResponse(response)
	if len([]rune(answer)) < 4 {
		return false
	}
	text := " " + strings.Join(wordBoundary.Split(strings.ToLower(clue), -1), " ") + " "
	needle := " " + strings.Join(wordBoundary.Split(answer, -1), " ") + " "
	return strings.Contains(text, needle)
}

// GradeBoard assigns a letter grade based on metrics
func GradeBoard(r *Report, t Thresholds) string {
	complete := r.CategoryCount > 0 && r.CompleteCategories*100/r.CategoryCount >= t.MinCompletePct
	clean := len(r.DuplicateResponses) <= t.MaxDuplicates && r.AnswerLeaks <= t.MaxAnswerLeaks

	if complete && clean && len(r.Issues) == 0 {
		return "A - EXCELLENT"
	}
	if complete && clean && len(r.Issues) <= t.GradeBMaxIssues {
		return "B - GOOD"
	}
	if len(r.Issues) <= t.GradeCMaxIssues {
		return "C - FAIR"
	}
	return "D - POOR"
}
