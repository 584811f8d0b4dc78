// Package draft holds the mutable draft game of one creation session.
package draft

import (
	"errors"
	"fmt"
	"jeop3/internal/core"
	"sort"
	"sync"
)

var (
	// ErrSlotBusy means an operation on the same slot, or an overlapping one, is still in flight.
	ErrSlotBusy = errors.New("slot has an operation in flight")
	// ErrClosed means the session owning the draft was torn down.
	ErrClosed = errors.New("draft is closed")
	// ErrOutOfRange means an index does not address an item in the draft.
	ErrOutOfRange = errors.New("index out of range")
)

// Slot addresses a category (Clue < 0) or a single clue.
type Slot struct {
	Category int
	Clue     int
}

// CategorySlot addresses a whole category.
func CategorySlot(i int) Slot { return Slot{Category: i, Clue: -1} }

// ClueSlot addresses one clue.
func ClueSlot(i, j int) Slot { return Slot{Category: i, Clue: j} }

// ID is the item id of the slot, as used for selections and markers.
func (s Slot) ID() string {
	if s.Clue < 0 {
		return core.CategoryItemID(s.Category)
	}
	return core.ClueItemID(s.Category, s.Clue)
}

// overlaps reports whether two slots touch the same data. A category overlaps each of its clues.
func (s Slot) overlaps(o Slot) bool {
	if s.Category != o.Category {
		return false
	}
	return s.Clue < 0 || o.Clue < 0 || s.Clue == o.Clue
}

// Store owns one DraftGame. All reads return copies and all writes replace exactly one slot.
type Store struct {
	mu          sync.Mutex
	draft       core.DraftGame
	pending     map[Slot]int
	regenerated map[string]struct{}
	closed      bool
}

// New creates a store holding a copy of d.
func New(d core.DraftGame) *Store {
	return &Store{
		draft:       d.Clone(),
		pending:     make(map[Slot]int),
		regenerated: make(map[string]struct{}),
	}
}

// Snapshot returns a deep copy of the current draft.
func (s *Store) Snapshot() core.DraftGame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Category returns a copy of category i.
func (s *Store) Category(i int) (core.GeneratedCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCategory(i); err != nil {
		return core.GeneratedCategory{}, err
	}
	return s.draft.Categories[i].Clone(), nil
}

func (s *Store) checkCategory(i int) error {
	if i < 0 || i >= len(s.draft.Categories) {
		return fmt.Errorf("%w: category %d of %d", ErrOutOfRange, i, len(s.draft.Categories))
	}
	return nil
}

func (s *Store) checkClue(i, j int) error {
	if err := s.checkCategory(i); err != nil {
		return err
	}
	if j < 0 || j >= len(s.draft.Categories[i].Clues) {
		return fmt.Errorf("%w: clue %d of %d in category %d", ErrOutOfRange, j, len(s.draft.Categories[i].Clues), i)
	}
	return nil
}

// CheckSlot validates that slot addresses an existing item.
func (s *Store) CheckSlot(slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkSlot(slot)
}

func (s *Store) checkSlot(slot Slot) error {
	if slot.Clue < 0 {
		return s.checkCategory(slot.Category)
	}
	return s.checkClue(slot.Category, slot.Clue)
}

// Begin marks slot as in flight. It fails with ErrOutOfRange when slot addresses no item and with
// ErrSlotBusy while an overlapping slot is pending. The returned release must be called exactly once
// when the operation finishes.
func (s *Store) Begin(slot Slot) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin(slot)
}

// Acquire is Begin that also returns a snapshot taken under the same lock, so the slot is known to
// exist in the snapshot.
func (s *Store) Acquire(slot Slot) (func(), core.DraftGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := s.begin(slot)
	if err != nil {
		return nil, core.DraftGame{}, err
	}
	return release, s.draft.Clone(), nil
}

// begin registers slot as pending. Callers hold s.mu.
func (s *Store) begin(slot Slot) (func(), error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.checkSlot(slot); err != nil {
		return nil, err
	}
	for p := range s.pending {
		if p.overlaps(slot) {
			return nil, fmt.Errorf("%w: %s", ErrSlotBusy, p.ID())
		}
	}
	s.pending[slot]++

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.pending[slot]--; s.pending[slot] <= 0 {
				delete(s.pending, slot)
			}
		})
	}, nil
}

// Pending lists the slots with an operation in flight, ordered by position.
func (s *Store) Pending() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Slot, 0, len(s.pending))
	for p := range s.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Category != out[b].Category {
			return out[a].Category < out[b].Category
		}
		return out[a].Clue < out[b].Clue
	})
	return out
}

// IsPending reports whether slot, or a slot overlapping it, is in flight.
func (s *Store) IsPending(slot Slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.pending {
		if p.overlaps(slot) {
			return true
		}
	}
	return false
}

func (s *Store) write(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return fn()
}

// ReplaceCategory swaps category i for cat.
func (s *Store) ReplaceCategory(i int, cat core.GeneratedCategory) error {
	return s.write(func() error {
		if err := s.checkCategory(i); err != nil {
			return err
		}
		s.draft.Categories[i] = cat.Clone()
		return nil
	})
}

// ReplaceClue swaps clue j of category i.
func (s *Store) ReplaceClue(i, j int, clue core.GeneratedClue) error {
	return s.write(func() error {
		if err := s.checkClue(i, j); err != nil {
			return err
		}
		s.draft.Categories[i].Clues[j] = clue
		return nil
	})
}

// SetCategoryTitle changes the display title of category i.
func (s *Store) SetCategoryTitle(i int, title string) error {
	return s.write(func() error {
		if err := s.checkCategory(i); err != nil {
			return err
		}
		s.draft.Categories[i].Title = title
		return nil
	})
}

// SetClueText changes the wording of a clue.
func (s *Store) SetClueText(i, j int, text string) error {
	return s.write(func() error {
		if err := s.checkClue(i, j); err != nil {
			return err
		}
		s.draft.Categories[i].Clues[j].Clue = text
		return nil
	})
}

// SetResponse changes the answer of a clue.
func (s *Store) SetResponse(i, j int, response string) error {
	return s.write(func() error {
		if err := s.checkClue(i, j); err != nil {
			return err
		}
		s.draft.Categories[i].Clues[j].Response = response
		return nil
	})
}

// SetTeamName changes team name k. k may equal the current count to append a name.
func (s *Store) SetTeamName(k int, name string) error {
	return s.write(func() error {
		n := len(s.draft.SuggestedTeamNames)
		switch {
		case k >= 0 && k < n:
			s.draft.SuggestedTeamNames[k] = name
		case k == n:
			s.draft.SuggestedTeamNames = append(s.draft.SuggestedTeamNames, name)
		default:
			return fmt.Errorf("%w: team %d of %d", ErrOutOfRange, k, n)
		}
		return nil
	})
}

// SetTitleOption changes title option k.
func (s *Store) SetTitleOption(k int, opt core.TitleOption) error {
	return s.write(func() error {
		if k < 0 || k >= len(s.draft.TitleOptions) {
			return fmt.Errorf("%w: title option %d of %d", ErrOutOfRange, k, len(s.draft.TitleOptions))
		}
		s.draft.TitleOptions[k] = opt
		return nil
	})
}

// SetTitles replaces all title options.
func (s *Store) SetTitles(opts []core.TitleOption) error {
	return s.write(func() error {
		s.draft.TitleOptions = append([]core.TitleOption(nil), opts...)
		return nil
	})
}

// SetTeamNames replaces all suggested team names.
func (s *Store) SetTeamNames(names []string) error {
	return s.write(func() error {
		s.draft.SuggestedTeamNames = append([]string(nil), names...)
		return nil
	})
}

// MarkRegenerated records that an item was regenerated in the current round.
func (s *Store) MarkRegenerated(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regenerated[id] = struct{}{}
}

// Regenerated lists the items regenerated in the current round, sorted.
func (s *Store) Regenerated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.regenerated))
	for id := range s.regenerated {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsRegenerated reports whether id was regenerated in the current round.
func (s *Store) IsRegenerated(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.regenerated[id]
	return ok
}

// ResetMarkers starts a new round.
func (s *Store) ResetMarkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regenerated = make(map[string]struct{})
}

// Close tears the draft down. Later writes, including results of calls still in flight, fail with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
