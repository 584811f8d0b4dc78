// Package session runs one game-creation flow: collect sources, generate a draft, curate it and
// finalize it into a stored game.
package session

import (
	"context"
	"errors"
	"fmt"
	"jeop3/internal/core"
	"jeop3/internal/cost"
	"jeop3/internal/curation"
	"jeop3/internal/draft"
	"jeop3/internal/fetch"
	"jeop3/internal/finalize"
	"jeop3/internal/generation"
	"jeop3/internal/logger"
	"jeop3/internal/naming"
	"jeop3/internal/persistence"
	"jeop3/internal/quality"
	"jeop3/internal/sources"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoDraft means the session has not generated a draft yet.
	ErrNoDraft = errors.New("session has no draft")
	// ErrGenerating means a generation run is already in progress for the session.
	ErrGenerating = errors.New("generation already in progress")
	// ErrCancelled means the session was cancelled and accepts no more work.
	ErrCancelled = errors.New("session cancelled")
	// ErrEmptyGame means every category was discarded.
	ErrEmptyGame = errors.New("nothing left to save: every category was discarded")
	// ErrNoRepository means the session was built without game storage.
	ErrNoRepository = errors.New("no game repository configured")
)

// Generator is everything a session asks of the generation backend.
type Generator interface {
	generation.CategoryGenerator
	curation.Generator
	naming.NameGenerator
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Generator        Generator
	Fetcher          fetch.ArticleFetcher
	Games            persistence.GameRepository
	Scheduler        generation.Scheduler
	FetchConcurrency int
	TeamCount        int
	Model            string
}

// Settings are the request-wide inputs of a generation run.
type Settings struct {
	Theme      string          `json:"theme"`
	Difficulty core.Difficulty `json:"difficulty"`
	AuthToken  string          `json:"-"`
}

// Outcome reports a generation run that produced a draft.
type Outcome struct {
	Draft         core.DraftGame
	Failures      []generation.SourceFailure
	FetchFailures []sources.FetchFailure
}

// Session owns the sources, draft and discard selection of one creation flow.
type Session struct {
	ID        string
	CreatedAt time.Time

	deps   Deps
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	budget        *sources.Budget
	settings      Settings
	mode          core.SourceMode
	store         *draft.Store
	controller    *curation.Controller
	discarded     finalize.DiscardSet
	failures      []generation.SourceFailure
	fetchFailures []sources.FetchFailure
	generatedFrom []core.ContentSource
	seededFrom    []core.SourceProvenance
	lastErr       error
	generating    bool
	lastUsed      time.Time
}

// New creates a session.
func New(deps Deps, settings Settings) *Session {
	if deps.Scheduler == nil {
		deps.Scheduler = generation.Sequential{}
	}
	if deps.TeamCount <= 0 {
		deps.TeamCount = naming.DefaultTeamCount
	}
	if settings.Difficulty == "" {
		settings.Difficulty = core.DifficultyNormal
	}
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	id := uuid.NewString()
	return &Session{
		ID:        id,
		CreatedAt: now,
		deps:      deps,
		log:       logger.Get().With("session_id", id),
		ctx:       ctx,
		cancel:    cancel,
		budget:    sources.NewBudget(),
		settings:  settings,
		mode:      core.SourceModeSingle,
		discarded: finalize.NewDiscardSet(),
		lastUsed:  now,
	}
}

// Bind derives a context that is cancelled when either ctx or the session ends.
func (s *Session) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// LastUsed is when the session was last read or changed.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) checkOpen() error {
	if s.ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

// Settings returns the current theme, difficulty and fetch token.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Configure replaces the run settings. Empty fields keep their current value.
func (s *Session) Configure(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := strings.TrimSpace(settings.Theme); t != "" {
		s.settings.Theme = t
	}
	if settings.Difficulty != "" {
		s.settings.Difficulty = settings.Difficulty
	}
	if settings.AuthToken != "" {
		s.settings.AuthToken = settings.AuthToken
	}
	s.lastUsed = time.Now()
}

// AddSource validates src and adds it to the budget. Adding a source switches the session to
// custom mode.
func (s *Session) AddSource(src core.ContentSource) (core.ContentSource, error) {
	if err := s.checkOpen(); err != nil {
		return core.ContentSource{}, err
	}
	added, err := s.budget.Add(src)
	if err != nil {
		return core.ContentSource{}, err
	}
	s.mu.Lock()
	s.mode = core.SourceModeCustom
	s.lastUsed = time.Now()
	s.mu.Unlock()
	s.log.Info("Source added", "source_id", added.ID, "kind", added.Kind, "categories", added.CategoryCount, "remaining", s.budget.Remaining())
	return added, nil
}

// RemoveSource drops a source. Removing the last one returns the session to single mode.
func (s *Session) RemoveSource(id string) error {
	if err := s.budget.Remove(id); err != nil {
		return err
	}
	s.mu.Lock()
	if s.budget.Len() == 0 {
		s.mode = core.SourceModeSingle
	}
	s.lastUsed = time.Now()
	s.mu.Unlock()
	return nil
}

// Sources lists the declared sources in order.
func (s *Session) Sources() []core.ContentSource {
	return s.budget.Sources()
}

// Remaining is the number of board categories not yet claimed by a source.
func (s *Session) Remaining() int {
	return s.budget.Remaining()
}

// Mode reports single or custom source mode.
func (s *Session) Mode() core.SourceMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// plannedSources is what a run will generate from: the declared sources, or the theme alone.
func (s *Session) plannedSources() ([]core.ContentSource, error) {
	if s.Mode() == core.SourceModeCustom {
		srcs := s.budget.Sources()
		if err := sources.ValidateSet(srcs); err != nil {
			return nil, err
		}
		return srcs, nil
	}
	theme := s.Settings().Theme
	src := generation.SingleSource(theme, "", "")
	if err := sources.Validate(src); err != nil {
		return nil, fmt.Errorf("%w: set a theme or add a source", err)
	}
	return []core.ContentSource{src}, nil
}

// Estimate projects the token use and cost of generating from the current sources.
func (s *Session) Estimate() (*cost.BoardEstimate, error) {
	srcs, err := s.plannedSources()
	if err != nil {
		return nil, err
	}
	return cost.EstimateBoard(srcs, s.deps.Model), nil
}

// Generate fetches url sources, generates categories and builds a fresh draft with titles and
// team names. When no category could be generated it returns a *generation.TotalFailureError,
// keeps any existing draft, and the session stays open for Retry.
func (s *Session) Generate(ctx context.Context) (*Outcome, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return nil, ErrGenerating
	}
	s.generating = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.generating = false
		s.lastUsed = time.Now()
		s.mu.Unlock()
	}()

	ctx, cancel := s.Bind(ctx)
	defer cancel()

	srcs, err := s.plannedSources()
	if err != nil {
		return nil, err
	}
	settings := s.Settings()

	srcs, fetchFailures := s.resolve(ctx, srcs, settings.AuthToken)

	orch := generation.NewOrchestrator(s.deps.Generator, s.deps.Scheduler)
	res, err := orch.GenerateFromSources(ctx, srcs, generation.Options{Theme: settings.Theme, Difficulty: settings.Difficulty})
	if err != nil {
		var total *generation.TotalFailureError
		if errors.As(err, &total) {
			total.Failures = explainFailures(total.Failures, fetchFailures)
			s.recordFailure(total.Failures, fetchFailures, err)
		}
		return nil, err
	}
	failures := explainFailures(res.Failures, fetchFailures)

	store := draft.New(core.DraftGame{
		Categories: res.Categories,
		Theme:      settings.Theme,
		Difficulty: settings.Difficulty,
		SourceMode: s.Mode(),
	})
	if err := naming.NewGenerator(s.deps.Generator).Enrich(ctx, store, s.deps.TeamCount); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.store != nil {
		s.store.Close()
	}
	s.store = store
	s.controller = curation.NewController(s.deps.Generator, store)
	s.discarded = finalize.NewDiscardSet()
	s.failures = failures
	s.fetchFailures = fetchFailures
	s.generatedFrom = srcs
	s.seededFrom = nil
	s.lastErr = nil
	s.mu.Unlock()

	s.log.Info("Draft ready", "categories", len(res.Categories), "failed_sources", len(failures))
	return &Outcome{Draft: store.Snapshot(), Failures: failures, FetchFailures: fetchFailures}, nil
}

// Retry repeats the last generation with the same sources, theme and difficulty.
func (s *Session) Retry(ctx context.Context) (*Outcome, error) {
	return s.Generate(ctx)
}

func (s *Session) resolve(ctx context.Context, srcs []core.ContentSource, token string) ([]core.ContentSource, []sources.FetchFailure) {
	if s.deps.Fetcher == nil {
		return srcs, nil
	}
	resolved, failures := sources.NewResolver(s.deps.Fetcher, s.deps.FetchConcurrency).Resolve(ctx, srcs, token)
	for _, src := range resolved {
		if src.Kind == core.SourceKindURL && src.FetchedContent != "" {
			// single-mode sources are not in the budget
			_ = s.budget.Update(src)
		}
	}
	for _, f := range failures {
		s.log.Warn("Source fetch failed", "source_id", f.Source.ID, "url", f.Source.URL, "auth_required", f.AuthRequired(), "error", f.Err)
	}
	return resolved, failures
}

// explainFailures swaps the generic unusable-source error for the fetch error that caused it.
func explainFailures(failures []generation.SourceFailure, fetchFailures []sources.FetchFailure) []generation.SourceFailure {
	if len(fetchFailures) == 0 {
		return failures
	}
	byID := make(map[string]error, len(fetchFailures))
	for _, f := range fetchFailures {
		byID[f.Source.ID] = f.Err
	}
	out := make([]generation.SourceFailure, len(failures))
	for i, f := range failures {
		if fetchErr, ok := byID[f.Source.ID]; ok && errors.Is(f.Err, generation.ErrSourceUnusable) {
			f.Err = fetchErr
		}
		out[i] = f
	}
	return out
}

func (s *Session) recordFailure(failures []generation.SourceFailure, fetchFailures []sources.FetchFailure, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = failures
	s.fetchFailures = fetchFailures
	s.lastErr = err
}

// LastError is the error of the last generation run, or nil when it produced a draft.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Failures lists the sources that produced nothing in the last run.
func (s *Session) Failures() []generation.SourceFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]generation.SourceFailure(nil), s.failures...)
}

// FetchFailures lists the url sources that could not be fetched in the last run.
func (s *Session) FetchFailures() []sources.FetchFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sources.FetchFailure(nil), s.fetchFailures...)
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() (core.DraftGame, error) {
	store, err := s.Store()
	if err != nil {
		return core.DraftGame{}, err
	}
	return store.Snapshot(), nil
}

// Store returns the draft store.
func (s *Session) Store() (*draft.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, ErrNoDraft
	}
	s.lastUsed = time.Now()
	return s.store, nil
}

// Controller returns the curation controller of the current draft.
func (s *Session) Controller() (*curation.Controller, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller == nil {
		return nil, ErrNoDraft
	}
	s.lastUsed = time.Now()
	return s.controller, nil
}

// ToggleDiscard flips the discard flag of an item and reports whether it is now discarded.
func (s *Session) ToggleDiscard(id string) (bool, error) {
	if _, _, err := core.ParseItemID(id); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded.Toggle(id), nil
}

// SetDiscarded replaces the discard selection.
func (s *Session) SetDiscarded(ids []string) error {
	for _, id := range ids {
		if _, _, err := core.ParseItemID(id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = finalize.NewDiscardSet(ids...)
	return nil
}

// Discarded lists the ids flagged for discard.
func (s *Session) Discarded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded.IDs()
}

// Quality evaluates the current draft.
func (s *Session) Quality() (*quality.Report, error) {
	d, err := s.Draft()
	if err != nil {
		return nil, err
	}
	return quality.Evaluate(d.Categories), nil
}

// Preview projects the draft onto a game without saving it.
func (s *Session) Preview(titleIndex *int) (core.Game, error) {
	d, err := s.Draft()
	if err != nil {
		return core.Game{}, err
	}
	s.mu.Lock()
	discarded := finalize.NewDiscardSet(s.discarded.IDs()...)
	provenance := finalize.Provenance(s.generatedFrom)
	if len(s.generatedFrom) == 0 {
		provenance = append(provenance, s.seededFrom...)
	}
	s.mu.Unlock()
	return finalize.Finalize(d, titleIndex, discarded, finalize.Meta{
		Sources:   provenance,
		Model:     s.deps.Model,
		CreatedAt: time.Now().UTC(),
	}), nil
}

// Finalize builds the game from the draft and the discard selection and saves it.
func (s *Session) Finalize(ctx context.Context, titleIndex *int) (*core.Game, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if s.deps.Games == nil {
		return nil, ErrNoRepository
	}
	game, err := s.Preview(titleIndex)
	if err != nil {
		return nil, err
	}
	if len(game.Categories) == 0 {
		return nil, ErrEmptyGame
	}

	id, err := s.deps.Games.Save(ctx, &game)
	if err != nil {
		return nil, fmt.Errorf("failed to save game: %w", err)
	}
	s.log.Info("Game saved", "game_id", id, "title", game.Title, "categories", len(game.Categories))
	return &game, nil
}

// SeedFromGame starts curation from a stored game. The stored game is not modified; finalizing
// saves a new one.
func (s *Session) SeedFromGame(game core.Game) {
	d := game.ToDraft()
	store := draft.New(d)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		s.store.Close()
	}
	s.store = store
	s.controller = curation.NewController(s.deps.Generator, store)
	s.discarded = finalize.NewDiscardSet()
	s.generatedFrom = nil
	s.seededFrom = game.Metadata.Sources
	s.settings.Theme = d.Theme
	if d.Difficulty != "" {
		s.settings.Difficulty = d.Difficulty
	}
	if d.SourceMode != "" {
		s.mode = d.SourceMode
	}
	s.lastUsed = time.Now()
}

// Cancel ends the session. In-flight calls are cancelled and late results are discarded.
func (s *Session) Cancel() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		s.store.Close()
	}
}

// Cancelled reports whether Cancel was called.
func (s *Session) Cancelled() bool {
	return s.ctx.Err() != nil
}
