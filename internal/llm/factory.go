package llm

import (
	"context"
	"fmt"
	"jeop3/internal/config"
	"jeop3/internal/cost"
	"time"
)

// timeoutCompleter bounds every call with a per-request timeout.
type timeoutCompleter struct {
	next    Completer
	timeout time.Duration
}

func (t timeoutCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, p)
}

// NewCompleterFromConfig builds the configured backend. It returns the completer and its model name.
func NewCompleterFromConfig(ctx context.Context, cfg config.AI) (Completer, string, error) {
	switch cfg.Provider {
	case "", "gemini":
		c, err := NewGeminiCompleter(ctx, cfg.Gemini)
		if err != nil {
			return nil, "", err
		}
		return timeoutCompleter{next: c, timeout: config.Duration(cfg.Gemini.Timeout, 60*time.Second)}, c.Model(), nil
	case "openai":
		c, err := NewOpenAICompleter(cfg.OpenAI)
		if err != nil {
			return nil, "", err
		}
		return timeoutCompleter{next: c, timeout: config.Duration(cfg.OpenAI.Timeout, 60*time.Second)}, c.Model(), nil
	case "mock":
		c := NewScriptedCompleter(OfflineScript())
		return c, c.Model(), nil
	}
	return nil, "", fmt.Errorf("unknown AI provider %q", cfg.Provider)
}

// NewGatewayFromConfig builds a traced gateway for the configured backend.
func NewGatewayFromConfig(ctx context.Context, cfg config.AI, ledger *cost.Ledger) (*Gateway, error) {
	c, model, err := NewCompleterFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewGateway(NewTracedCompleter(c, model, ledger), model), nil
}
