package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"jeop3/internal/config"
	"jeop3/internal/core"
	"jeop3/internal/cost"
	"jeop3/internal/fetch"
	"jeop3/internal/generation"
	"jeop3/internal/quality"
	"jeop3/internal/render"
	"jeop3/internal/session"
	"jeop3/internal/tui"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type generateOptions struct {
	theme       string
	difficulty  string
	topics      []string
	pastes      []string
	urls        []string
	urlsFile    string
	authToken   string
	titleOption int
	discard     []string
	interactive bool
	estimate    bool
	showQuality bool
	export      string
	outputDir   string
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a board and save it",
		Long: `Generate a six-category board and save it as a game.

Without sources the whole board comes from --theme. Adding any --topic,
--paste-file or --url switches to custom sources; each source yields the
number of categories given after '@' (for example "Volcanoes@2"). Sources
without a count share whatever is left of the six categories.

URL sources are fetched first. Sources that fail are reported and the
board is built from the rest.

Examples:
  # Whole board from a theme
  jeop3 generate --theme "90s movies" --difficulty easy

  # Mixed sources, reviewed in the terminal before saving
  jeop3 generate --theme "Science night" --topic "Volcanoes@2" --paste-file notes.txt@1 \
      --url https://example.com/article@3 --interactive

  # Drop a category and pick the second title suggestion
  jeop3 generate --theme "Geography" --discard cat-5 --title-option 2

  # Only estimate tokens and cost
  jeop3 generate --urls-file links.md --estimate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.theme, "theme", "", "Board theme (required when no sources are given)")
	cmd.Flags().StringVar(&opts.difficulty, "difficulty", "", "easy, normal or hard (default from config)")
	cmd.Flags().StringArrayVar(&opts.topics, "topic", nil, "Topic source, optionally with a category count: \"Volcanoes@2\"")
	cmd.Flags().StringArrayVar(&opts.pastes, "paste-file", nil, "Text file to generate from ('-' for stdin), optionally \"notes.txt@2\"")
	cmd.Flags().StringArrayVar(&opts.urls, "url", nil, "Article URL to fetch and generate from, optionally \"https://...@2\"")
	cmd.Flags().StringVar(&opts.urlsFile, "urls-file", "", "File listing article URLs, one source per URL")
	cmd.Flags().StringVar(&opts.authToken, "auth-token", "", "Bearer token for protected URLs (default from config)")
	cmd.Flags().IntVar(&opts.titleOption, "title-option", 1, "Which suggested title to use (1-based)")
	cmd.Flags().StringSliceVar(&opts.discard, "discard", nil, "Item ids to leave out, e.g. cat-5,cat-0-clue-2")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Review and curate the draft in the terminal before saving")
	cmd.Flags().BoolVar(&opts.estimate, "estimate", false, "Print a token and cost estimate without generating")
	cmd.Flags().BoolVar(&opts.showQuality, "quality", false, "Print a quality report for the saved board")
	cmd.Flags().StringVar(&opts.export, "export", "", "Also write the saved board to a file: md, html or json")
	cmd.Flags().StringVar(&opts.outputDir, "output", "games", "Directory for --export")

	return cmd
}

func runGenerate(ctx context.Context, opts generateOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Get()

	level := opts.difficulty
	if level == "" {
		level = cfg.Generation.Difficulty
	}
	difficulty, err := core.ParseDifficulty(level)
	if err != nil {
		return err
	}
	srcs, err := buildSources(opts)
	if err != nil {
		return err
	}
	token := opts.authToken
	if token == "" {
		token = cfg.Fetch.AuthToken
	}

	ledger := cost.NewLedger()
	if opts.estimate {
		deps, err := newSessionDeps(ctx, cfg, nil, ledger)
		if err != nil {
			return err
		}
		sess, err := newCLISession(deps, session.Settings{Theme: opts.theme, Difficulty: difficulty}, srcs)
		if err != nil {
			return err
		}
		defer sess.Cancel()
		est, err := sess.Estimate()
		if err != nil {
			return err
		}
		fmt.Fprint(out, est.FormatEstimate())
		return nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	deps, err := newSessionDeps(ctx, cfg, db, ledger)
	if err != nil {
		return err
	}
	sess, err := newCLISession(deps, session.Settings{Theme: opts.theme, Difficulty: difficulty, AuthToken: token}, srcs)
	if err != nil {
		return err
	}
	defer sess.Cancel()

	fmt.Fprintf(out, "Generating a %s board (%s sources)...\n", difficulty, sess.Mode())
	outcome, err := sess.Generate(ctx)
	if err != nil {
		var total *generation.TotalFailureError
		if errors.As(err, &total) {
			printFailures(out, total.Failures)
		}
		return err
	}
	if len(outcome.Failures) > 0 {
		fmt.Fprintf(out, "Built %d of %d categories; some sources failed:\n", len(outcome.Draft.Categories), core.BoardCategories)
		printFailures(out, outcome.Failures)
	}

	var game *core.Game
	if opts.interactive {
		game, err = tui.Run(ctx, sess)
		if err != nil {
			return err
		}
		if game == nil {
			fmt.Fprintln(out, "Draft closed without saving.")
			return nil
		}
	} else {
		if err := sess.SetDiscarded(opts.discard); err != nil {
			return err
		}
		idx := opts.titleOption - 1
		game, err = sess.Finalize(ctx, &idx)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Saved game %s: %q (%d categories)\n", game.ID, game.Title, len(game.Categories))

	if opts.showQuality {
		evaluator := quality.NewBoardEvaluator()
		evaluator.PrintReport(out, game.Title, evaluator.EvaluateGame(*game))
	}
	if opts.export != "" {
		format, err := render.ParseFormat(opts.export)
		if err != nil {
			return err
		}
		path, err := render.WriteGameToFile(*game, format, opts.outputDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported to %s\n", path)
	}

	fmt.Fprint(out, ledger.Summary().String())
	return nil
}

// newCLISession creates a session and declares the given sources.
func newCLISession(deps session.Deps, settings session.Settings, srcs []core.ContentSource) (*session.Session, error) {
	sess := session.New(deps, settings)
	for _, src := range srcs {
		if _, err := sess.AddSource(src); err != nil {
			sess.Cancel()
			return nil, err
		}
	}
	return sess, nil
}

func printFailures(out io.Writer, failures []generation.SourceFailure) {
	for _, f := range failures {
		fmt.Fprintf(out, "  ✗ %s: %v\n", f.Source.Label(), f.Err)
		if fetch.IsAuthError(f.Err) {
			fmt.Fprintln(out, "    The page needs authentication; pass --auth-token or paste its text instead.")
		}
	}
}

// buildSources turns the source flags into content sources, in flag order: topics, pasted files,
// then urls.
func buildSources(opts generateOptions) ([]core.ContentSource, error) {
	var srcs []core.ContentSource
	var counts []int

	add := func(src core.ContentSource, count int) {
		srcs = append(srcs, src)
		counts = append(counts, count)
	}

	for _, raw := range opts.topics {
		topic, count, err := splitCount(raw)
		if err != nil {
			return nil, err
		}
		add(core.ContentSource{Kind: core.SourceKindTopic, Topic: topic}, count)
	}
	for _, raw := range opts.pastes {
		path, count, err := splitCount(raw)
		if err != nil {
			return nil, err
		}
		text, err := readPaste(path)
		if err != nil {
			return nil, err
		}
		add(core.ContentSource{Kind: core.SourceKindPastedText, Content: text}, count)
	}

	urls := append([]string(nil), opts.urls...)
	if opts.urlsFile != "" {
		listed, err := fetch.ReadURLsFromFile(opts.urlsFile)
		if err != nil {
			return nil, err
		}
		urls = append(urls, listed...)
	}
	for _, raw := range urls {
		u, count, err := splitCount(raw)
		if err != nil {
			return nil, err
		}
		add(core.ContentSource{Kind: core.SourceKindURL, URL: u}, count)
	}

	if err := distributeCounts(counts); err != nil {
		return nil, err
	}
	for i := range srcs {
		srcs[i].CategoryCount = counts[i]
	}
	return srcs, nil
}

// splitCount separates an optional "@N" suffix. A missing count is returned as 0.
func splitCount(raw string) (string, int, error) {
	raw = strings.TrimSpace(raw)
	at := strings.LastIndex(raw, "@")
	if at < 0 {
		return raw, 0, nil
	}
	suffix := raw[at+1:]
	n, err := strconv.Atoi(suffix)
	if err != nil {
		// Not a count; the '@' belongs to the value.
		return raw, 0, nil
	}
	if n < 1 || n > core.BoardCategories {
		return "", 0, fmt.Errorf("category count for %q must be between 1 and %d", raw[:at], core.BoardCategories)
	}
	return strings.TrimSpace(raw[:at]), n, nil
}

// distributeCounts shares the unclaimed categories among sources without an explicit count.
// Earlier sources get the extra category when the split is uneven.
func distributeCounts(counts []int) error {
	claimed, open := 0, 0
	for _, c := range counts {
		if c == 0 {
			open++
		}
		claimed += c
	}
	if claimed > core.BoardCategories {
		return fmt.Errorf("sources request %d categories but the board holds %d", claimed, core.BoardCategories)
	}
	if open == 0 {
		return nil
	}
	left := core.BoardCategories - claimed
	if left < open {
		return fmt.Errorf("%d sources without a count but only %d categories left", open, left)
	}
	share, extra := left/open, left%open
	for i, c := range counts {
		if c != 0 {
			continue
		}
		counts[i] = share
		if extra > 0 {
			counts[i]++
			extra--
		}
	}
	return nil
}

func readPaste(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read pasted text %s: %w", path, err)
	}
	return string(data), nil
}
