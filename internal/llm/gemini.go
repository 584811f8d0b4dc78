package llm

import (
	"context"
	"fmt"
	"jeop3/internal/config"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash-lite"

// GeminiCompleter calls Google Gemini with JSON output and a response schema per prompt type.
type GeminiCompleter struct {
	gClient     *genai.Client
	modelName   string
	maxTokens   int32
	temperature float32
}

// NewGeminiCompleter creates a Gemini-backed completer.
func NewGeminiCompleter(ctx context.Context, cfg config.GeminiConfig) (*GeminiCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.\nGet your API key from: https://aistudio.google.com/app/apikey")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiCompleter{
		gClient:     gClient,
		modelName:   modelName,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the configured model name.
func (c *GeminiCompleter) Model() string {
	return c.modelName
}

func (c *GeminiCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: p.User}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: p.System}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    ResponseSchema(p.Type),
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}
	if c.temperature > 0 {
		config.Temperature = genai.Ptr(c.temperature)
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

func clueSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"value":    {Type: genai.TypeInteger},
			"clue":     {Type: genai.TypeString},
			"response": {Type: genai.TypeString},
		},
		Required: []string{"value", "clue", "response"},
	}
}

func categorySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":        {Type: genai.TypeString, Description: "Creative display name"},
			"contentTopic": {Type: genai.TypeString, Description: "Descriptive topic name"},
			"clues":        {Type: genai.TypeArray, Items: clueSchema()},
		},
		Required: []string{"title", "contentTopic", "clues"},
	}
}

func objectWith(key string, s *genai.Schema) *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{key: s},
		Required:   []string{key},
	}
}

// ResponseSchema returns the structured output schema for a prompt type, or nil when none applies.
func ResponseSchema(t PromptType) *genai.Schema {
	switch t {
	case PromptCategories, PromptCategoriesFromContent:
		return objectWith("categories", &genai.Schema{Type: genai.TypeArray, Items: categorySchema()})
	case PromptCategoryReplace:
		return objectWith("category", categorySchema())
	case PromptClueGenerate:
		return objectWith("clue", clueSchema())
	case PromptCategoryTitle:
		return objectWith("title", &genai.Schema{Type: genai.TypeString})
	case PromptClueRewrite:
		return objectWith("clue", &genai.Schema{Type: genai.TypeString})
	case PromptGameTitle:
		return objectWith("titles", &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":    {Type: genai.TypeString},
					"subtitle": {Type: genai.TypeString},
				},
				Required: []string{"title", "subtitle"},
			},
		})
	case PromptTeamNames:
		return objectWith("names", &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}})
	}
	return nil
}
