package llm

import (
	"context"
	"jeop3/internal/cost"
	"jeop3/internal/logger"
	"log/slog"
	"time"
)

// TracedCompleter logs every call and records its estimated token usage in a cost ledger.
type TracedCompleter struct {
	next   Completer
	model  string
	ledger *cost.Ledger
	log    *slog.Logger
}

// NewTracedCompleter wraps next. A nil ledger disables cost recording.
func NewTracedCompleter(next Completer, model string, ledger *cost.Ledger) *TracedCompleter {
	return &TracedCompleter{next: next, model: model, ledger: ledger, log: logger.Get()}
}

// Ledger returns the ledger calls are recorded in.
func (tc *TracedCompleter) Ledger() *cost.Ledger {
	return tc.ledger
}

func (tc *TracedCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	startTime := time.Now()
	result, err := tc.next.Complete(ctx, p)
	latency := time.Since(startTime)

	inputTokens := cost.EstimateTokenCount(p.System + "\n" + p.User)
	outputTokens := cost.EstimateTokenCount(result)

	if tc.ledger != nil {
		tc.ledger.Record(cost.Call{
			PromptType:   string(p.Type),
			Model:        tc.model,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			Latency:      latency,
			Failed:       err != nil,
		})
	}

	if err != nil {
		tc.log.Warn("Model call failed",
			"prompt_type", p.Type,
			"model", tc.model,
			"latency_ms", latency.Milliseconds(),
			"error", err,
		)
		return "", err
	}

	tc.log.Info("Model call completed",
		"prompt_type", p.Type,
		"model", tc.model,
		"difficulty", p.Difficulty,
		"latency_ms", latency.Milliseconds(),
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
	)
	return result, nil
}
