// Package quality reports advisory problems on a generated board. Nothing here blocks finalization.
package quality

import (
	"fmt"
	"io"
	"jeop3/internal/core"
	"sort"
	"strings"
)

// BoardEvaluator evaluates the quality of generated boards
type BoardEvaluator struct {
	thresholds Thresholds
}

// NewBoardEvaluator creates a new board evaluator with default thresholds
func NewBoardEvaluator() *BoardEvaluator {
	return &BoardEvaluator{
		thresholds: DefaultThresholds(),
	}
}

// NewBoardEvaluatorWithThresholds creates an evaluator with custom thresholds
func NewBoardEvaluatorWithThresholds(thresholds Thresholds) *BoardEvaluator {
	return &BoardEvaluator{
		thresholds: thresholds,
	}
}

// Evaluate runs the default evaluator over categories.
func Evaluate(categories []core.GeneratedCategory) *Report {
	return NewBoardEvaluator().Evaluate(categories)
}

// Evaluate checks column shape, row values, empty fields, answer reuse and answer leaks.
func (e *BoardEvaluator) Evaluate(categories []core.GeneratedCategory) *Report {
	r := &Report{
		CategoryCount: len(categories),
		Issues:        []Issue{},
	}
	add := func(id string, kind IssueKind, format string, args ...any) {
		r.Issues = append(r.Issues, Issue{ItemID: id, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	// responses by normalized form, with the first item that used each
	firstUse := make(map[string]string)
	duplicates := make(map[string]bool)

	for i, cat := range categories {
		catID := core.CategoryItemID(i)
		complete := true

		// Check 1: Category labels
		if strings.TrimSpace(cat.Title) == "" {
			add(catID, IssueMissingTitle, "Category %d has no title", i+1)
			complete = false
		}
		if strings.TrimSpace(cat.ContentTopic) == "" {
			add(catID, IssueMissingTopic, "Category %q has no content topic", cat.Title)
		}

		// Check 2: Column shape and row values
		if len(cat.Clues) != core.CluesPerCategory {
			add(catID, IssueClueCount, "Category %q has %d clues (expected %d)", cat.Title, len(cat.Clues), core.CluesPerCategory)
			complete = false
		} else if !valuesMatch(cat.Clues) {
			add(catID, IssueValueSet, "Category %q values %v do not match %v", cat.Title, clueValues(cat.Clues), core.ClueValues)
			complete = false
		}

		for j, clue := range cat.Clues {
			clueID := core.ClueItemID(i, j)
			r.TotalClues++

			// Check 3: Empty fields
			if strings.TrimSpace(clue.Clue) == "" {
				add(clueID, IssueMissingClue, "Clue %d in %q is empty", j+1, cat.Title)
				complete = false
			}
			if strings.TrimSpace(clue.Response) == "" {
				add(clueID, IssueMissingResponse, "Clue %d in %q has no response", j+1, cat.Title)
				complete = false
				continue
			}

			// Check 4: Duplicate responses across the board
			norm := NormalizeResponse(clue.Response)
			if prev, ok := firstUse[norm]; ok {
				add(clueID, IssueDuplicate, "Response %q already used at %s", clue.Response, prev)
				duplicates[clue.Response] = true
			} else {
				firstUse[norm] = clueID
			}

			// Check 5: Clue gives its answer away
			if LeaksAnswer(clue.Clue, clue.Response) {
				add(clueID, IssueAnswerInClue, "Clue %d in %q contains its response %q", j+1, cat.Title, clue.Response)
				r.AnswerLeaks++
			}

			// Check 6: Vagueness
			if phrases := DetectVaguePhrases(clue.Clue); len(phrases) > 0 {
				add(clueID, IssueVagueClue, "Clue %d in %q is vague (%s)", j+1, cat.Title, strings.Join(phrases, ", "))
				r.VagueClues++
			} else if words := len(strings.Fields(clue.Clue)); words > 0 && words < e.thresholds.MinClueWords {
				add(clueID, IssueVagueClue, "Clue %d in %q has only %d words", j+1, cat.Title, words)
				r.VagueClues++
			}
		}

		if complete {
			r.CompleteCategories++
		}
	}

	for resp := range duplicates {
		r.DuplicateResponses = append(r.DuplicateResponses, resp)
	}
	sort.Strings(r.DuplicateResponses)

	r.Grade = GradeBoard(r, e.thresholds)
	r.Passed = len(r.DuplicateResponses) <= e.thresholds.MaxDuplicates &&
		r.AnswerLeaks <= e.thresholds.MaxAnswerLeaks &&
		r.VagueClues <= e.thresholds.MaxVagueClues &&
		r.CompleteCategories == r.CategoryCount
	return r
}

// EvaluateGame evaluates a stored game.
func (e *BoardEvaluator) EvaluateGame(g core.Game) *Report {
	return e.Evaluate(g.ToDraft().Categories)
}

func valuesMatch(clues []core.GeneratedClue) bool {
	got := clueValues(clues)
	sort.Ints(got)
	for i, v := range core.ClueValues {
		if got[i] != v {
			return false
		}
	}
	return true
}

func clueValues(clues []core.GeneratedClue) []int {
	out := make([]int, len(clues))
	for i, c := range clues {
		out[i] = c.Value
	}
	return out
}

// PrintReport writes a formatted quality report for a board
func (e *BoardEvaluator) PrintReport(w io.Writer, title string, r *Report) {
	if title == "" {
		title = "Untitled Board"
	}

	fmt.Fprintln(w, "============================================================")
	fmt.Fprintf(w, "BOARD QUALITY REPORT: %s\n", title)
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintf(w, "Grade: %s\n", r.Grade)
	fmt.Fprintf(w, "Categories: %d (%d complete)\n", r.CategoryCount, r.CompleteCategories)
	fmt.Fprintf(w, "Clues: %d\n", r.TotalClues)
	fmt.Fprintf(w, "Duplicate responses: %d", len(r.DuplicateResponses))
	if len(r.DuplicateResponses) > 0 {
		fmt.Fprintf(w, " (%v)", r.DuplicateResponses)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Answer leaks: %d\n", r.AnswerLeaks)
	fmt.Fprintf(w, "Vague clues: %d\n", r.VagueClues)

	if len(r.Issues) > 0 {
		fmt.Fprintln(w, "\n⚠️  ISSUES:")
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  - [%s] %s\n", issue.ItemID, issue.Message)
		}
	} else {
		fmt.Fprintln(w, "\n✅ No issues detected")
	}

	fmt.Fprintln(w, "============================================================")
	fmt.Fprintln(w)
}

// AuditGames evaluates stored games and provides aggregate statistics
func (e *BoardEvaluator) AuditGames(games []core.Game) *AuditReport {
	report := &AuditReport{
		TotalGames:  len(games),
		GradeCounts: make(map[string]int),
	}

	for _, g := range games {
		r := e.EvaluateGame(g)
		report.GameReports = append(report.GameReports, GameReport{GameID: g.ID, Title: g.Title, Report: r})
		report.TotalIssues += len(r.Issues)
		report.TotalDuplicates += len(r.DuplicateResponses)

		// Count grades (extract letter only: "A - EXCELLENT" -> "A")
		gradeLetter := strings.Split(r.Grade, " ")[0]
		report.GradeCounts[gradeLetter]++
	}

	if report.TotalGames > 0 {
		report.AvgIssues = float64(report.TotalIssues) / float64(report.TotalGames)
	}

	switch {
	case report.TotalDuplicates > 0:
		report.Recommendation = "🟡 WARNING: Repeated responses - regenerate the flagged clues"
	case report.AvgIssues > 3:
		report.Recommendation = "🟡 WARNING: Many issues per board - review prompts and difficulty"
	default:
		report.Recommendation = "🟢 GOOD: Boards look playable"
	}
	return report
}

// PrintAuditReport writes a formatted audit report
func (e *BoardEvaluator) PrintAuditReport(w io.Writer, report *AuditReport) {
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintf(w, "BOARD QUALITY AUDIT REPORT (%d games)\n", report.TotalGames)
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintf(w, "Average issues: %.1f per game\n", report.AvgIssues)
	fmt.Fprintf(w, "Duplicate responses: %d\n", report.TotalDuplicates)
	fmt.Fprintln(w, "\nGrade Distribution:")
	for _, grade := range []string{"A", "B", "C", "D"} {
		count := report.GradeCounts[grade]
		if count > 0 {
			pct := float64(count) * 100.0 / float64(report.TotalGames)
			fmt.Fprintf(w, "  %s: %d games (%.0f%%)\n", grade, count, pct)
		}
	}
	fmt.Fprintf(w, "\n%s\n", report.Recommendation)
	fmt.Fprintln(w, "============================================================")
}

// GameReport is the evaluation of one stored game.
type GameReport struct {
	GameID string
	Title  string
	Report *Report
}

// AuditReport contains aggregate statistics from auditing multiple games
type AuditReport struct {
	TotalGames      int
	AvgIssues       float64
	TotalIssues     int
	TotalDuplicates int
	GradeCounts     map[string]int
	Recommendation  string
	GameReports     []GameReport
}
