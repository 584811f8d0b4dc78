package llm

import (
	"fmt"
	"jeop3/internal/core"
	"strings"
)

// PromptType names one kind of generation request.
type PromptType string

const (
	PromptCategories            PromptType = "categories-generate"
	PromptCategoriesFromContent PromptType = "categories-generate-from-content"
	PromptCategoryReplace       PromptType = "category-replace-all"
	PromptClueGenerate          PromptType = "question-generate-single"
	PromptCategoryTitle         PromptType = "category-title-generate"
	PromptClueRewrite           PromptType = "question-rewrite"
	PromptGameTitle             PromptType = "game-title"
	PromptTeamNames             PromptType = "team-name-random"
)

// SystemInstruction is sent with every request.
const SystemInstruction = "You are a Jeopardy game content generator. Always respond with valid JSON only, no prose. No markdown, no explanations, just raw JSON."

// maxMaterialChars bounds grounding text embedded in a single prompt.
const maxMaterialChars = 30000

// ValueGuidance maps each board value to the kind of knowledge it should test.
var ValueGuidance = map[int]string{
	200:  "Obvious / very well-known facts",
	400:  "Common knowledge within topic",
	600:  "Requires familiarity with the topic",
	800:  "Niche or specific details",
	1000: "Deep cuts / less obvious information",
}

// Context is everything a prompt may draw on. Builders read only the fields their type needs.
type Context struct {
	Theme          string
	Count          int                  // categories, titles or team names requested
	Material       string               // grounding text from a pasted or fetched source
	SourceURL      string               // where Material came from
	CategoryTitle  string               // category being worked on
	ContentTopic   string               // its descriptive topic
	OtherClues     []core.GeneratedClue // sibling clues in the same category
	Current        *core.GeneratedClue  // clue being replaced or reworded
	Value          int                  // board value of the clue being generated
	Exclude        []string             // answers that must not be reused
	Summary        string               // compact board summary used for naming
	CategoryTitles []string
}

// Prompt is a fully rendered request.
type Prompt struct {
	Type       PromptType
	System     string
	User       string
	Context    Context
	Difficulty core.Difficulty
}

// DifficultyText renders the difficulty instruction.
func DifficultyText(d core.Difficulty) string {
	switch d {
	case core.DifficultyEasy:
		return "Make clues easier and more accessible. Favor well-known facts even at high values."
	case core.DifficultyHard:
		return "Make clues challenging. Favor specific details and less obvious connections even at low values."
	}
	return "Balanced difficulty level."
}

func valueGuidelines() string {
	var sb strings.Builder
	sb.WriteString("Value guidelines:\n")
	for _, v := range core.ClueValues {
		sb.WriteString(fmt.Sprintf("- %d: %s\n", v, ValueGuidance[v]))
	}
	return sb.String()
}

func exclusionText(exclude []string) string {
	if len(exclude) == 0 {
		return ""
	}
	return fmt.Sprintf("\nDo NOT use any of these answers, they are already on the board: %s\n", strings.Join(exclude, "; "))
}

func materialBlock(material string) string {
	if len(material) > maxMaterialChars {
		material = material[:maxMaterialChars]
	}
	return "Source material:\n\"\"\"\n" + material + "\n\"\"\"\n"
}

const categoryShape = `{
  "title": "Creative Display Name",
  "contentTopic": "Descriptive Topic Name",
  "clues": [
    {"value": 200, "clue": "...", "response": "..."},
    {"value": 400, "clue": "...", "response": "..."},
    {"value": 600, "clue": "...", "response": "..."},
    {"value": 800, "clue": "...", "response": "..."},
    {"value": 1000, "clue": "...", "response": "..."}
  ]
}`

const twoNames = `IMPORTANT: Each category needs TWO names:
1. "title" - A creative, catchy display name for players (e.g., "Geography Genius", "Word Wizards")
2. "contentTopic" - The descriptive topic name for AI context (e.g., "World Capitals", "Literary Terms")

The title should be fun and creative while the contentTopic should be clear and descriptive.
`

// BuildPrompt renders the prompt for a request type.
func BuildPrompt(t PromptType, c Context, d core.Difficulty) (Prompt, error) {
	if d == "" {
		d = core.DifficultyNormal
	}
	theme := c.Theme
	if strings.TrimSpace(theme) == "" {
		theme = "general"
	}

	var sb strings.Builder
	switch t {
	case PromptCategories, PromptCategoriesFromContent:
		count := c.Count
		if count <= 0 {
			count = core.BoardCategories
		}
		if t == PromptCategoriesFromContent {
			if strings.TrimSpace(c.Material) == "" {
				return Prompt{}, fmt.Errorf("prompt %s requires source material", t)
			}
			sb.WriteString(fmt.Sprintf("Generate %d Jeopardy categories based on the source material below. Theme: \"%s\".\n", count, theme))
			sb.WriteString("Every clue must be answerable from the source material.\n\n")
			sb.WriteString(materialBlock(c.Material))
		} else {
			sb.WriteString(fmt.Sprintf("Generate %d Jeopardy categories for theme: \"%s\".\n", count, theme))
		}
		sb.WriteString("\nDifficulty: " + DifficultyText(d) + "\n\n")
		sb.WriteString(valueGuidelines())
		sb.WriteString("\n" + twoNames)
		sb.WriteString(exclusionText(c.Exclude))
		sb.WriteString("\nReturn JSON format:\n{\n  \"categories\": [\n" + categoryShape + "\n  ]\n}")

	case PromptCategoryReplace:
		topic := firstNonEmpty(c.ContentTopic, c.CategoryTitle, theme)
		sb.WriteString(fmt.Sprintf("Replace an entire Jeopardy category. Theme: \"%s\". Current category: \"%s\" (topic: %s).\n", theme, c.CategoryTitle, topic))
		sb.WriteString("Write a fresh category on the same topic with a new title and five new clues.\n\n")
		if strings.TrimSpace(c.Material) != "" {
			sb.WriteString(materialBlock(c.Material))
			sb.WriteString("\n")
		}
		sb.WriteString("Difficulty: " + DifficultyText(d) + "\n\n")
		sb.WriteString(valueGuidelines())
		sb.WriteString("\n" + twoNames)
		sb.WriteString(exclusionText(c.Exclude))
		sb.WriteString("\nReturn JSON format:\n{\n  \"category\": " + categoryShape + "\n}")

	case PromptClueGenerate:
		value := c.Value
		if value == 0 && c.Current != nil {
			value = c.Current.Value
		}
		topic := firstNonEmpty(c.ContentTopic, c.CategoryTitle, theme)
		sb.WriteString(fmt.Sprintf("Write one new Jeopardy clue worth %d for the category \"%s\" (topic: %s). Theme: \"%s\".\n", value, c.CategoryTitle, topic, theme))
		if guidance, ok := ValueGuidance[value]; ok {
			sb.WriteString(fmt.Sprintf("A %d clue should test: %s.\n", value, guidance))
		}
		if c.Current != nil {
			sb.WriteString(fmt.Sprintf("Replace this clue: \"%s\" (answer: \"%s\").\n", c.Current.Clue, c.Current.Response))
		}
		if len(c.OtherClues) > 0 {
			sb.WriteString("Other clues in this category:\n")
			for _, oc := range c.OtherClues {
				sb.WriteString(fmt.Sprintf("- %d: %s (answer: %s)\n", oc.Value, oc.Clue, oc.Response))
			}
		}
		if strings.TrimSpace(c.Material) != "" {
			sb.WriteString("\n" + materialBlock(c.Material))
		}
		sb.WriteString("\nDifficulty: " + DifficultyText(d) + "\n")
		sb.WriteString(exclusionText(c.Exclude))
		sb.WriteString(fmt.Sprintf("\nReturn JSON format:\n{\"clue\": {\"value\": %d, \"clue\": \"...\", \"response\": \"...\"}}", value))

	case PromptCategoryTitle:
		anchor := firstNonEmpty(c.ContentTopic, c.CategoryTitle)
		sb.WriteString(fmt.Sprintf("Write a new creative, catchy Jeopardy category title for the topic \"%s\". Theme: \"%s\".\n", anchor, theme))
		if c.CategoryTitle != "" {
			sb.WriteString(fmt.Sprintf("The current title is \"%s\"; the new one must be different.\n", c.CategoryTitle))
		}
		if len(c.OtherClues) > 0 {
			sb.WriteString("The title must still fit these clues:\n")
			for _, oc := range c.OtherClues {
				sb.WriteString(fmt.Sprintf("- %s (answer: %s)\n", oc.Clue, oc.Response))
			}
		}
		sb.WriteString("\nReturn JSON format:\n{\"title\": \"...\"}")

	case PromptClueRewrite:
		if c.Current == nil {
			return Prompt{}, fmt.Errorf("prompt %s requires the current clue", t)
		}
		topic := firstNonEmpty(c.ContentTopic, c.CategoryTitle, theme)
		sb.WriteString(fmt.Sprintf("Reword this Jeopardy clue in the category \"%s\" (topic: %s) without changing its answer.\n", c.CategoryTitle, topic))
		sb.WriteString(fmt.Sprintf("Clue: \"%s\"\nAnswer (keep exactly): \"%s\"\nValue: %d\n", c.Current.Clue, c.Current.Response, c.Current.Value))
		sb.WriteString("The new wording must not give away or restate any other answer on the board.\n")
		sb.WriteString("\nDifficulty: " + DifficultyText(d) + "\n")
		sb.WriteString(exclusionText(c.Exclude))
		sb.WriteString("\nReturn JSON format:\n{\"clue\": \"...\"}")

	case PromptGameTitle:
		count := c.Count
		if count <= 0 {
			count = 3
		}
		sb.WriteString(fmt.Sprintf("Suggest %d title options for a Jeopardy game. Theme: \"%s\".\n", count, theme))
		if c.Summary != "" {
			sb.WriteString("The board contains:\n" + c.Summary + "\n")
		}
		sb.WriteString("Each option has a short catchy title and a one-line subtitle.\n")
		sb.WriteString("\nReturn JSON format:\n{\"titles\": [{\"title\": \"...\", \"subtitle\": \"...\"}]}")

	case PromptTeamNames:
		count := c.Count
		if count <= 0 {
			count = 4
		}
		sb.WriteString(fmt.Sprintf("Suggest %d fun team names for a Jeopardy game. Theme: \"%s\".\n", count, theme))
		if len(c.CategoryTitles) > 0 {
			sb.WriteString("Categories on the board: " + strings.Join(c.CategoryTitles, ", ") + "\n")
		}
		sb.WriteString("Names should be short and fit the theme.\n")
		sb.WriteString("\nReturn JSON format:\n{\"names\": [\"...\"]}")

	default:
		return Prompt{}, fmt.Errorf("unknown prompt type %q", t)
	}

	return Prompt{Type: t, System: SystemInstruction, User: sb.String(), Context: c, Difficulty: d}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
