package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"jeop3/internal/core"
	"jeop3/internal/logger"
	"log/slog"
	"strings"
)

var (
	// ErrGenerationFailed is wrapped by every error returned from the Gateway.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrMalformedResult means the model answered but not with the expected JSON shape.
	ErrMalformedResult = errors.New("malformed generation result")
)

// GenerationError describes a failed request.
type GenerationError struct {
	PromptType PromptType
	Reason     string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.PromptType, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.PromptType, e.Reason)
}

func (e *GenerationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGenerationFailed, e.Err}
	}
	return []error{ErrGenerationFailed}
}

// Completer sends one prompt to a model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Gateway turns raw completions into typed results. JSON is decoded here and nowhere else.
type Gateway struct {
	completer Completer
	model     string
	log       *slog.Logger
}

// NewGateway wraps a completer. model is recorded in game metadata.
func NewGateway(c Completer, model string) *Gateway {
	return &Gateway{completer: c, model: model, log: logger.Get()}
}

// Model returns the model name the gateway was built with.
func (g *Gateway) Model() string {
	return g.model
}

func (g *Gateway) complete(ctx context.Context, t PromptType, c Context, d core.Difficulty) (string, error) {
	p, err := BuildPrompt(t, c, d)
	if err != nil {
		return "", &GenerationError{PromptType: t, Reason: "invalid request", Err: err}
	}
	raw, err := g.completer.Complete(ctx, p)
	if err != nil {
		return "", &GenerationError{PromptType: t, Reason: "model call failed", Err: err}
	}
	return raw, nil
}

// decodeKey extracts the JSON object in raw and decodes its key into T.
func decodeKey[T any](t PromptType, raw, key string) (T, error) {
	var zero T
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &envelope); err != nil {
		return zero, &GenerationError{PromptType: t, Reason: "response is not a JSON object", Err: fmt.Errorf("%w: %v", ErrMalformedResult, err)}
	}
	value, ok := envelope[key]
	if !ok {
		return zero, &GenerationError{PromptType: t, Reason: fmt.Sprintf("missing %q key", key), Err: ErrMalformedResult}
	}
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return zero, &GenerationError{PromptType: t, Reason: fmt.Sprintf("bad %q value", key), Err: fmt.Errorf("%w: %v", ErrMalformedResult, err)}
	}
	return out, nil
}

func malformed(t PromptType, reason string) error {
	return &GenerationError{PromptType: t, Reason: reason, Err: ErrMalformedResult}
}

// ExtractJSON strips markdown code fences and any prose around the outermost JSON object.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = content[7:]
	} else if strings.HasPrefix(content, "```") {
		content = content[3:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "{") {
		return content
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

// normalizeCategory trims fields, drops empty clues, keeps at most one column of clues and fills
// missing values by row.
func normalizeCategory(c core.GeneratedCategory) core.GeneratedCategory {
	c.Title = strings.TrimSpace(c.Title)
	c.ContentTopic = strings.TrimSpace(c.ContentTopic)
	if c.Title == "" {
		c.Title = c.ContentTopic
	}
	clues := make([]core.GeneratedClue, 0, core.CluesPerCategory)
	for _, clue := range c.Clues {
		if len(clues) == core.CluesPerCategory {
			break
		}
		clue.Clue = strings.TrimSpace(clue.Clue)
		clue.Response = strings.TrimSpace(clue.Response)
		if clue.Clue == "" && clue.Response == "" {
			continue
		}
		if clue.Value == 0 {
			clue.Value = core.ClueValues[len(clues)]
		}
		clues = append(clues, clue)
	}
	c.Clues = clues
	c.SourceMaterial = ""
	c.SourceURL = ""
	return c
}

// Categories generates up to c.Count categories. Grounded when c.Material is set, topic-only otherwise.
func (g *Gateway) Categories(ctx context.Context, c Context, d core.Difficulty) ([]core.GeneratedCategory, error) {
	t := PromptCategories
	if strings.TrimSpace(c.Material) != "" {
		t = PromptCategoriesFromContent
	}
	raw, err := g.complete(ctx, t, c, d)
	if err != nil {
		return nil, err
	}
	cats, err := decodeKey[[]core.GeneratedCategory](t, raw, "categories")
	if err != nil {
		return nil, err
	}

	out := make([]core.GeneratedCategory, 0, len(cats))
	for _, cat := range cats {
		cat = normalizeCategory(cat)
		if cat.Title == "" || len(cat.Clues) == 0 {
			g.log.Debug("Dropping unusable category from response", "prompt_type", t, "title", cat.Title)
			continue
		}
		out = append(out, cat)
	}
	if len(out) == 0 {
		return nil, malformed(t, "no usable categories")
	}
	return out, nil
}

// ReplaceCategory generates one full replacement category.
func (g *Gateway) ReplaceCategory(ctx context.Context, c Context, d core.Difficulty) (core.GeneratedCategory, error) {
	raw, err := g.complete(ctx, PromptCategoryReplace, c, d)
	if err != nil {
		return core.GeneratedCategory{}, err
	}
	cat, err := decodeKey[core.GeneratedCategory](PromptCategoryReplace, raw, "category")
	if err != nil {
		return core.GeneratedCategory{}, err
	}
	cat = normalizeCategory(cat)
	if cat.Title == "" || len(cat.Clues) == 0 {
		return core.GeneratedCategory{}, malformed(PromptCategoryReplace, "category has no title or clues")
	}
	return cat, nil
}

// Clue generates one replacement clue. Value is whatever the model returned, possibly zero.
func (g *Gateway) Clue(ctx context.Context, c Context, d core.Difficulty) (core.GeneratedClue, error) {
	raw, err := g.complete(ctx, PromptClueGenerate, c, d)
	if err != nil {
		return core.GeneratedClue{}, err
	}
	clue, err := decodeKey[core.GeneratedClue](PromptClueGenerate, raw, "clue")
	if err != nil {
		return core.GeneratedClue{}, err
	}
	clue.Clue = strings.TrimSpace(clue.Clue)
	clue.Response = strings.TrimSpace(clue.Response)
	if clue.Clue == "" || clue.Response == "" {
		return core.GeneratedClue{}, malformed(PromptClueGenerate, "clue or response is empty")
	}
	return clue, nil
}

// CategoryTitle generates a new title for an existing category.
func (g *Gateway) CategoryTitle(ctx context.Context, c Context, d core.Difficulty) (string, error) {
	return g.text(ctx, PromptCategoryTitle, "title", c, d)
}

// ClueText rewords an existing clue, keeping its answer.
func (g *Gateway) ClueText(ctx context.Context, c Context, d core.Difficulty) (string, error) {
	return g.text(ctx, PromptClueRewrite, "clue", c, d)
}

func (g *Gateway) text(ctx context.Context, t PromptType, key string, c Context, d core.Difficulty) (string, error) {
	raw, err := g.complete(ctx, t, c, d)
	if err != nil {
		return "", err
	}
	s, err := decodeKey[string](t, raw, key)
	if err != nil {
		return "", err
	}
	if s = strings.TrimSpace(s); s == "" {
		return "", malformed(t, fmt.Sprintf("empty %q", key))
	}
	return s, nil
}

// Titles generates game title options.
func (g *Gateway) Titles(ctx context.Context, c Context) ([]core.TitleOption, error) {
	raw, err := g.complete(ctx, PromptGameTitle, c, core.DifficultyNormal)
	if err != nil {
		return nil, err
	}
	opts, err := decodeKey[[]core.TitleOption](PromptGameTitle, raw, "titles")
	if err != nil {
		return nil, err
	}
	out := make([]core.TitleOption, 0, len(opts))
	for _, o := range opts {
		o.Title = strings.TrimSpace(o.Title)
		o.Subtitle = strings.TrimSpace(o.Subtitle)
		if o.Title != "" {
			out = append(out, o)
		}
	}
	return out, nil
}

// TeamNames generates suggested team names.
func (g *Gateway) TeamNames(ctx context.Context, c Context) ([]string, error) {
	raw, err := g.complete(ctx, PromptTeamNames, c, core.DifficultyNormal)
	if err != nil {
		return nil, err
	}
	names, err := decodeKey[[]string](PromptTeamNames, raw, "names")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}
