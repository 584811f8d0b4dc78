package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"jeop3/internal/core"
	"strings"
	"sync"
)

// ScriptFunc answers a prompt with raw model text.
type ScriptFunc func(p Prompt) (string, error)

// ScriptedCompleter answers prompts with a function instead of a model. It records every prompt it sees.
type ScriptedCompleter struct {
	mu     sync.Mutex
	script ScriptFunc
	calls  []Prompt
}

// NewScriptedCompleter creates a completer driven by script.
func NewScriptedCompleter(script ScriptFunc) *ScriptedCompleter {
	return &ScriptedCompleter{script: script}
}

func (s *ScriptedCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, p)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.script(p)
}

// Calls returns the prompts received so far.
func (s *ScriptedCompleter) Calls() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.calls...)
}

// CallsOf returns the prompts of one type.
func (s *ScriptedCompleter) CallsOf(t PromptType) []Prompt {
	var out []Prompt
	for _, p := range s.Calls() {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// Model identifies offline generation in game metadata.
func (s *ScriptedCompleter) Model() string {
	return "offline"
}

// OfflineScript returns a deterministic generator that needs no network. Every answer it writes is
// unique for the lifetime of the script and never one of the prompt's excluded answers.
func OfflineScript() ScriptFunc {
	w := &offlineWriter{}
	return w.answer
}

type offlineWriter struct {
	mu sync.Mutex
	n  int
}

func (w *offlineWriter) next() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.n++
	return w.n
}

func (w *offlineWriter) response(exclude []string) string {
	for {
		r := fmt.Sprintf("Answer %d", w.next())
		if !containsFold(exclude, r) {
			return r
		}
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

func (w *offlineWriter) category(topic string, exclude []string) core.GeneratedCategory {
	k := w.next()
	cat := core.GeneratedCategory{
		Title:        fmt.Sprintf("%s Round %d", topic, k),
		ContentTopic: fmt.Sprintf("%s, part %d", topic, k),
	}
	for _, v := range core.ClueValues {
		resp := w.response(exclude)
		cat.Clues = append(cat.Clues, core.GeneratedClue{
			Value:    v,
			Clue:     fmt.Sprintf("This %d-point fact about %s leads to %s", v, topic, resp),
			Response: resp,
		})
	}
	return cat
}

func (w *offlineWriter) answer(p Prompt) (string, error) {
	c := p.Context
	theme := firstNonEmpty(c.Theme, "Trivia")
	var body any

	switch p.Type {
	case PromptCategories, PromptCategoriesFromContent:
		count := c.Count
		if count <= 0 {
			count = core.BoardCategories
		}
		topic := theme
		if p.Type == PromptCategoriesFromContent {
			topic = firstWords(c.Material, 3)
		}
		cats := make([]core.GeneratedCategory, 0, count)
		for i := 0; i < count; i++ {
			cats = append(cats, w.category(topic, c.Exclude))
		}
		body = map[string]any{"categories": cats}
	case PromptCategoryReplace:
		body = map[string]any{"category": w.category(firstNonEmpty(c.ContentTopic, c.CategoryTitle, theme), c.Exclude)}
	case PromptClueGenerate:
		value := c.Value
		if value == 0 && c.Current != nil {
			value = c.Current.Value
		}
		resp := w.response(c.Exclude)
		body = map[string]any{"clue": core.GeneratedClue{
			Value:    value,
			Clue:     fmt.Sprintf("A fresh %d-point clue about %s", value, firstNonEmpty(c.ContentTopic, c.CategoryTitle, theme)),
			Response: resp,
		}}
	case PromptCategoryTitle:
		body = map[string]any{"title": fmt.Sprintf("%s Revisited %d", firstNonEmpty(c.ContentTopic, c.CategoryTitle, theme), w.next())}
	case PromptClueRewrite:
		current := ""
		if c.Current != nil {
			current = c.Current.Clue
		}
		body = map[string]any{"clue": fmt.Sprintf("Put another way (%d): %s", w.next(), current)}
	case PromptGameTitle:
		body = map[string]any{"titles": []core.TitleOption{
			{Title: theme + " Showdown", Subtitle: "Six categories, thirty clues"},
			{Title: theme + " Night", Subtitle: "Test what you know"},
			{Title: "The " + theme + " Challenge", Subtitle: "Buzz in if you dare"},
		}}
	case PromptTeamNames:
		count := c.Count
		if count <= 0 {
			count = 4
		}
		names := make([]string, 0, count)
		for i := 1; i <= count; i++ {
			names = append(names, fmt.Sprintf("%s Squad %d", theme, i))
		}
		body = map[string]any{"names": names}
	default:
		return "", fmt.Errorf("offline script cannot answer %s", p.Type)
	}

	out, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return "Source"
	}
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
