// Package tui is the terminal curation screen: browse the draft, flag items for discard,
// regenerate or rewrite them, and finalize the game.
package tui

import (
	"context"
	"fmt"
	"jeop3/internal/core"
	"jeop3/internal/draft"
	"jeop3/internal/session"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	docStyle       = lipgloss.NewStyle().Margin(1, 2)
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	discardedStyle = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
	markerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// row is one selectable line: a category header (clue < 0) or a clue.
type row struct {
	cat  int
	clue int
}

func (r row) slot() draft.Slot {
	if r.clue < 0 {
		return draft.CategorySlot(r.cat)
	}
	return draft.ClueSlot(r.cat, r.clue)
}

// opDoneMsg reports a finished regenerate or rewrite.
type opDoneMsg struct {
	label string
	err   error
}

// finalizedMsg reports the outcome of finalization.
type finalizedMsg struct {
	game *core.Game
	err  error
}

// model represents the state of the curation screen.
type model struct {
	ctx        context.Context
	sess       *session.Session
	cursor     int
	titleIndex int
	inFlight   int
	status     string
	err        error
	width      int
	height     int
	game       *core.Game
	finalizing bool
	quitting   bool
}

func newModel(ctx context.Context, sess *session.Session) model {
	return model{ctx: ctx, sess: sess, width: 120, status: "Review the board, then press enter to save."}
}

func (m model) draft() core.DraftGame {
	d, err := m.sess.Draft()
	if err != nil {
		return core.DraftGame{}
	}
	return d
}

func rows(d core.DraftGame) []row {
	var out []row
	for i, cat := range d.Categories {
		out = append(out, row{cat: i, clue: -1})
		for j := range cat.Clues {
			out = append(out, row{cat: i, clue: j})
		}
	}
	return out
}

func (m model) selected() (row, bool) {
	rs := rows(m.draft())
	if m.cursor < 0 || m.cursor >= len(rs) {
		return row{}, false
	}
	return rs[m.cursor], true
}

// Init is the first command that will be run. We don't need any for now.
func (m model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model accordingly.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case opDoneMsg:
		m.inFlight--
		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("%s failed; the draft is unchanged.", msg.label)
		} else {
			m.err = nil
			m.status = msg.label + " done."
		}

	case finalizedMsg:
		m.finalizing = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "Could not save the game."
			return m, nil
		}
		m.game = msg.game
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(rows(m.draft()))-1 {
			m.cursor++
		}
	case "n":
		if opts := m.draft().TitleOptions; len(opts) > 0 {
			m.titleIndex = (m.titleIndex + 1) % len(opts)
		}
	case "x":
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		discarded, err := m.sess.ToggleDiscard(r.slot().ID())
		if err != nil {
			m.err = err
			return m, nil
		}
		if discarded {
			m.status = r.slot().ID() + " will be left out."
		} else {
			m.status = r.slot().ID() + " restored."
		}
	case "r":
		return m.startOp(true)
	case "t":
		return m.startOp(false)
	case "enter":
		if m.finalizing || m.inFlight > 0 {
			m.status = "Wait for running changes to finish before saving."
			return m, nil
		}
		m.finalizing = true
		m.status = "Saving..."
		return m, m.finalizeCmd()
	}
	return m, nil
}

// startOp regenerates (regenerate=true) or rewrites the selected item in the background.
func (m model) startOp(regenerate bool) (tea.Model, tea.Cmd) {
	r, ok := m.selected()
	if !ok {
		return m, nil
	}
	ctrl, err := m.sess.Controller()
	if err != nil {
		m.err = err
		return m, nil
	}
	store := ctrl.Store()
	if err := store.CheckSlot(r.slot()); err != nil {
		m.err = err
		return m, nil
	}
	if store.IsPending(r.slot()) {
		m.status = r.slot().ID() + " is already being changed."
		return m, nil
	}

	var label string
	var run func(ctx context.Context) error
	switch {
	case regenerate && r.clue < 0:
		label = "Regenerating category " + fmt.Sprint(r.cat+1)
		run = func(ctx context.Context) error { _, err := ctrl.RegenerateCategory(ctx, r.cat); return err }
	case regenerate:
		label = fmt.Sprintf("Regenerating clue %d.%d", r.cat+1, r.clue+1)
		run = func(ctx context.Context) error { _, err := ctrl.RegenerateClue(ctx, r.cat, r.clue); return err }
	case r.clue < 0:
		label = "Rewriting title of category " + fmt.Sprint(r.cat+1)
		run = func(ctx context.Context) error { _, err := ctrl.RewriteCategoryTitle(ctx, r.cat); return err }
	default:
		label = fmt.Sprintf("Rewriting clue %d.%d", r.cat+1, r.clue+1)
		run = func(ctx context.Context) error { _, err := ctrl.RewriteClueText(ctx, r.cat, r.clue); return err }
	}

	m.inFlight++
	m.status = label + "..."
	ctx := m.ctx
	return m, func() tea.Msg {
		return opDoneMsg{label: label, err: run(ctx)}
	}
}

func (m model) finalizeCmd() tea.Cmd {
	ctx, sess, idx := m.ctx, m.sess, m.titleIndex
	return func() tea.Msg {
		game, err := sess.Finalize(ctx, &idx)
		return finalizedMsg{game: game, err: err}
	}
}

// View renders the TUI.
func (m model) View() string {
	if m.quitting {
		if m.game != nil {
			return fmt.Sprintf("Saved %q (%d categories).\n", m.game.Title, len(m.game.Categories))
		}
		return "Quitting...\n"
	}

	d := m.draft()
	store, _ := m.sess.Store()
	discarded := make(map[string]bool)
	for _, id := range m.sess.Discarded() {
		discarded[id] = true
	}

	paneWidth := m.width/2 - 5
	if paneWidth < 30 {
		paneWidth = 30
	}
	listStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1).Width(paneWidth)
	detailStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1).Width(paneWidth)

	var list strings.Builder
	list.WriteString(headerStyle.Render(titleLine(d, m.titleIndex)) + "\n\n")
	for i, r := range rows(d) {
		list.WriteString(m.renderRow(d, r, i == m.cursor, discarded, store) + "\n")
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, listStyle.Render(list.String()), detailStyle.Render(m.detail(d)))

	status := m.status
	if m.err != nil {
		status += "\n" + errorStyle.Render(m.err.Error())
	}
	help := helpStyle.Render("[↑/k] Up | [↓/j] Down | [x] Discard | [r] Regenerate | [t] Rewrite | [n] Next title | [enter] Save | [q] Quit")

	return docStyle.Render(mainContent + "\n\n" + status + "\n\n" + help)
}

func titleLine(d core.DraftGame, idx int) string {
	if idx >= 0 && idx < len(d.TitleOptions) {
		return fmt.Sprintf("%s (%d/%d)", d.TitleOptions[idx].Title, idx+1, len(d.TitleOptions))
	}
	return "Untitled board"
}

func (m model) renderRow(d core.DraftGame, r row, selected bool, discarded map[string]bool, store *draft.Store) string {
	cat := d.Categories[r.cat]
	var text string
	if r.clue < 0 {
		text = strings.ToUpper(cat.Title)
	} else {
		clue := cat.Clues[r.clue]
		text = fmt.Sprintf("  %4d  %s", clue.Value, truncate(clue.Response, 40))
	}

	if discarded[r.slot().ID()] || (r.clue >= 0 && discarded[core.CategoryItemID(r.cat)]) {
		text = discardedStyle.Render(text)
	}
	if store != nil {
		if store.IsPending(r.slot()) {
			text += markerStyle.Render(" …")
		} else if store.IsRegenerated(r.slot().ID()) {
			text += markerStyle.Render(" *")
		}
	}

	cursor := "  "
	if selected {
		cursor = cursorStyle.Render("> ")
	}
	return cursor + text
}

func (m model) detail(d core.DraftGame) string {
	r, ok := m.selected()
	if !ok {
		return "No draft loaded."
	}
	cat := d.Categories[r.cat]
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(cat.Title))
	if cat.ContentTopic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", cat.ContentTopic)
	}
	if cat.SourceURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", cat.SourceURL)
	}
	if r.clue < 0 {
		fmt.Fprintf(&b, "\n%d clues\n", len(cat.Clues))
		return b.String()
	}
	clue := cat.Clues[r.clue]
	fmt.Fprintf(&b, "\nFor %d:\n%s\n\nResponse: %s\n", clue.Value, clue.Clue, clue.Response)
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// Run opens the curation screen for the session's draft. It returns the saved game, or nil when the
// user quit without saving.
func Run(ctx context.Context, sess *session.Session) (*core.Game, error) {
	if _, err := sess.Draft(); err != nil {
		return nil, err
	}
	p := tea.NewProgram(newModel(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running curation screen: %w", err)
	}
	if m, ok := final.(model); ok {
		return m.game, nil
	}
	return nil, nil
}
