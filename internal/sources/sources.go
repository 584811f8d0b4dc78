// Package sources validates content sources and enforces the per-board category budget.
package sources

import (
	"errors"
	"fmt"
	"jeop3/internal/core"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSource is wrapped by every ValidationError.
	ErrInvalidSource = errors.New("invalid content source")
	// ErrBudgetExceeded means the sources together ask for more categories than the board holds.
	ErrBudgetExceeded = errors.New("category budget exceeded")
	// ErrNoSources means a generation request was submitted without any source.
	ErrNoSources = errors.New("at least one content source is required")
	// ErrSourceNotFound is returned when removing an unknown source id.
	ErrSourceNotFound = errors.New("content source not found")
)

// ValidationError reports a source rejected by local checks, before any network call.
type ValidationError struct {
	SourceID string
	Field    string
	Reason   string
	Err      error // optional cause such as ErrBudgetExceeded
}

func (e *ValidationError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("source %s: %s: %s", e.SourceID, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidSource, e.Err}
	}
	return []error{ErrInvalidSource}
}

func invalid(src core.ContentSource, field, reason string) *ValidationError {
	return &ValidationError{SourceID: src.ID, Field: field, Reason: reason}
}

// Validate checks a single source against the local constraints for its kind.
func Validate(src core.ContentSource) error {
	switch src.Kind {
	case core.SourceKindTopic:
		if strings.TrimSpace(src.Topic) == "" {
			return invalid(src, "topic", "topic must not be empty")
		}
	case core.SourceKindPastedText:
		n := utf8.RuneCountInString(strings.TrimSpace(src.Content))
		if n < core.MinPasteChars {
			return invalid(src, "content", fmt.Sprintf("content must be at least %d characters", core.MinPasteChars))
		}
		if n > core.MaxPasteChars {
			return invalid(src, "content", fmt.Sprintf("content must be at most %d characters", core.MaxPasteChars))
		}
	case core.SourceKindURL:
		if err := ValidateURL(src.URL); err != nil {
			return invalid(src, "url", err.Error())
		}
	default:
		return invalid(src, "kind", fmt.Sprintf("unknown source kind %q", src.Kind))
	}

	if src.CategoryCount < 1 || src.CategoryCount > core.BoardCategories {
		return invalid(src, "categoryCount", fmt.Sprintf("category count must be between 1 and %d", core.BoardCategories))
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url must use http or https")
	}
	if u.Host == "" {
		return errors.New("url must include a host")
	}
	return nil
}

// TotalCategories sums the requested category counts.
func TotalCategories(srcs []core.ContentSource) int {
	total := 0
	for _, s := range srcs {
		total += s.CategoryCount
	}
	return total
}

// ValidateSet re-checks every source and the combined budget before submission.
func ValidateSet(srcs []core.ContentSource) error {
	if len(srcs) == 0 {
		return &ValidationError{Field: "sources", Reason: ErrNoSources.Error(), Err: ErrNoSources}
	}
	for _, s := range srcs {
		if err := Validate(s); err != nil {
			return err
		}
	}
	if total := TotalCategories(srcs); total > core.BoardCategories {
		return &ValidationError{
			Field:  "categoryCount",
			Reason: fmt.Sprintf("sources request %d categories but the board holds %d", total, core.BoardCategories),
			Err:    ErrBudgetExceeded,
		}
	}
	return nil
}

// Budget is an ordered source list that never requests more than BoardCategories categories.
type Budget struct {
	mu      sync.Mutex
	sources []core.ContentSource
}

// NewBudget creates an empty budget.
func NewBudget() *Budget {
	return &Budget{}
}

// Add validates src and appends it. It assigns an id when src has none.
func (b *Budget) Add(src core.ContentSource) (core.ContentSource, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if err := Validate(src); err != nil {
		return core.ContentSource{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	used := TotalCategories(b.sources)
	if used+src.CategoryCount > core.BoardCategories {
		return core.ContentSource{}, &ValidationError{
			SourceID: src.ID,
			Field:    "categoryCount",
			Reason:   fmt.Sprintf("only %d of %d categories remain", core.BoardCategories-used, core.BoardCategories),
			Err:      ErrBudgetExceeded,
		}
	}
	b.sources = append(b.sources, src)
	return src, nil
}

// Remove drops the source with the given id.
func (b *Budget) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.sources {
		if s.ID == id {
			b.sources = append(b.sources[:i], b.sources[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
}

// Update replaces a stored source, typically after its URL content was fetched.
func (b *Budget) Update(src core.ContentSource) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.sources {
		if s.ID == src.ID {
			b.sources[i] = src
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSourceNotFound, src.ID)
}

// Remaining is the number of categories still available.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return core.BoardCategories - TotalCategories(b.sources)
}

// Sources returns a copy of the sources in insertion order.
func (b *Budget) Sources() []core.ContentSource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.ContentSource(nil), b.sources...)
}

// Len is the number of sources added.
func (b *Budget) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sources)
}
