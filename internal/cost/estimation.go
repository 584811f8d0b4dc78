package cost

import (
	"fmt"
	"jeop3/internal/core"
	"math"
	"strings"
	"unicode/utf8"
)

// ModelPricing is the per-token pricing of a model.
type ModelPricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // Cost per 1M input tokens in USD
	OutputCostPer1MTokens float64 // Cost per 1M output tokens in USD
	OutputTokensPerCall   int     // Typical output size of one category call
}

// DefaultModel is used for estimates when a model has no pricing entry.
const DefaultModel = "gemini-2.5-flash-lite"

// PricingTable contains approximate OpenRouter pricing for the models the generator is tuned for.
var PricingTable = map[string]ModelPricing{
	"gemini-2.5-flash-lite": {
		Model:                 "gemini-2.5-flash-lite",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
		OutputTokensPerCall:   335,
	},
	"gemini-2.5-flash": {
		Model:                 "gemini-2.5-flash",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
		OutputTokensPerCall:   330,
	},
	"gemini-3-flash-preview": {
		Model:                 "gemini-3-flash-preview",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
		OutputTokensPerCall:   340,
	},
	"gpt-4o-mini": {
		Model:                 "gpt-4o-mini",
		InputCostPer1MTokens:  0.15,
		OutputCostPer1MTokens: 0.60,
		OutputTokensPerCall:   350,
	},
}

// PricingFor looks up a model, ignoring an OpenRouter vendor prefix such as "google/".
// Unknown models fall back to DefaultModel pricing.
func PricingFor(model string) ModelPricing {
	if p, ok := PricingTable[model]; ok {
		return p
	}
	if i := strings.LastIndex(model, "/"); i >= 0 {
		if p, ok := PricingTable[model[i+1:]]; ok {
			return p
		}
	}
	p := PricingTable[DefaultModel]
	p.Model = model
	return p
}

// Cost prices a number of input and output tokens.
func (p ModelPricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputCostPer1MTokens/1000000 + float64(outputTokens)*p.OutputCostPer1MTokens/1000000
}

// EstimateTokenCount provides a rough estimation of token count for text
// This is a simplified approximation: typically 1 token ≈ 0.75 words ≈ 4 characters
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")

	charCount := utf8.RuneCountInString(text)

	// 3.5 rather than 4 leaves room for special tokens and JSON punctuation
	return int(math.Ceil(float64(charCount) / 3.5))
}

// promptOverhead is the fixed instruction text sent with every category request, in tokens.
const promptOverhead = 450

// SourceEstimate is the estimated cost of generating one source's categories.
type SourceEstimate struct {
	Label        string  `json:"label"`
	Categories   int     `json:"categories"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
}

// BoardEstimate is a dry-run estimate for generating a whole board.
type BoardEstimate struct {
	Model             string           `json:"model"`
	Sources           []SourceEstimate `json:"sources"`
	TotalInputTokens  int              `json:"totalInputTokens"`
	TotalOutputTokens int              `json:"totalOutputTokens"`
	TotalCost         float64          `json:"totalCost"`
}

// EstimateBoard estimates the cost of generating categories from srcs without calling a model.
// One call is made per source; output scales with the number of categories requested.
func EstimateBoard(srcs []core.ContentSource, model string) *BoardEstimate {
	pricing := PricingFor(model)
	estimate := &BoardEstimate{Model: model}

	for _, src := range srcs {
		input := promptOverhead + EstimateTokenCount(src.Topic) + EstimateTokenCount(src.GroundingText())
		output := pricing.OutputTokensPerCall * src.CategoryCount
		se := SourceEstimate{
			Label:        src.Label(),
			Categories:   src.CategoryCount,
			InputTokens:  input,
			OutputTokens: output,
			Cost:         pricing.Cost(input, output),
		}
		estimate.Sources = append(estimate.Sources, se)
		estimate.TotalInputTokens += input
		estimate.TotalOutputTokens += output
		estimate.TotalCost += se.Cost
	}
	return estimate
}

// FormatEstimate formats the estimate for display
func (e *BoardEstimate) FormatEstimate() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Cost Estimation for %s\n", e.Model))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	sb.WriteString(fmt.Sprintf("   Sources: %d\n", len(e.Sources)))
	sb.WriteString(fmt.Sprintf("   Input tokens: %d\n", e.TotalInputTokens))
	sb.WriteString(fmt.Sprintf("   Output tokens: %d\n", e.TotalOutputTokens))
	sb.WriteString(fmt.Sprintf("   Total estimated cost: $%.6f\n\n", e.TotalCost))

	for i, s := range e.Sources {
		sb.WriteString(fmt.Sprintf("   %d. $%.6f - %d categories - %s\n", i+1, s.Cost, s.Categories, s.Label))
	}
	return sb.String()
}
