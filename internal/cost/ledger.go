package cost

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Call is one recorded model call.
type Call struct {
	PromptType   string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
	Failed       bool
}

// Ledger accumulates model calls for a session or a CLI run. It is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	calls []Call
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends a call.
func (l *Ledger) Record(c Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

// Calls returns a copy of the recorded calls.
func (l *Ledger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Summary aggregates the ledger.
type Summary struct {
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	Cost         float64
	Latency      time.Duration
	ByPromptType map[string]int
}

// Summary totals every recorded call, pricing each by its own model.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{ByPromptType: make(map[string]int)}
	for _, c := range l.calls {
		s.Calls++
		if c.Failed {
			s.Failures++
		}
		s.InputTokens += c.InputTokens
		s.OutputTokens += c.OutputTokens
		s.Cost += PricingFor(c.Model).Cost(c.InputTokens, c.OutputTokens)
		s.Latency += c.Latency
		s.ByPromptType[c.PromptType]++
	}
	return s
}

// String renders a one-line-per-field report.
func (s Summary) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("AI calls: %d (%d failed)\n", s.Calls, s.Failures))
	sb.WriteString(fmt.Sprintf("Tokens: %d in / %d out\n", s.InputTokens, s.OutputTokens))
	sb.WriteString(fmt.Sprintf("Estimated cost: $%.6f\n", s.Cost))
	sb.WriteString(fmt.Sprintf("Model time: %s\n", s.Latency.Round(time.Millisecond)))

	types := make([]string, 0, len(s.ByPromptType))
	for t := range s.ByPromptType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", t, s.ByPromptType[t]))
	}
	return sb.String()
}
