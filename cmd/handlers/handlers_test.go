package handlers

import (
	"bytes"
	"jeop3/internal/config"
	"jeop3/internal/core"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JEOP3_DATABASE_URL", "")
	t.Setenv("JEOP3_AI_PROVIDER", "")
	t.Setenv("AI_PROVIDER", "")

	dir := t.TempDir()
	cfg := `app:
  data_dir: ` + dir + `
ai:
  provider: mock
storage:
  driver: sqlite
logging:
  level: error
`
	path := filepath.Join(dir, "jeop3.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Cleanup(config.Reset)
	return path
}

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	config.Reset()
	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

var savedID = regexp.MustCompile(`Saved game (\S+):`)

func TestGenerateFromTheme(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, cfgPath, "generate", "--theme", "Space", "--quality")
	if err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"Space Showdown" (6 categories)`) {
		t.Errorf("Expected the first title and a full board, got:\n%s", out)
	}
	if !strings.Contains(out, "BOARD QUALITY REPORT") {
		t.Error("Expected a quality report")
	}
	if !strings.Contains(out, "AI calls:") {
		t.Error("Expected a cost summary")
	}

	out, err = runCLI(t, cfgPath, "games", "list")
	if err != nil {
		t.Fatalf("games list failed: %v", err)
	}
	if !strings.Contains(out, "Space Showdown") || !strings.Contains(out, "Showing 1 games") {
		t.Errorf("Unexpected list output:\n%s", out)
	}
}

func TestGenerateCustomSourcesWithCuration(t *testing.T) {
	cfgPath := writeTestConfig(t)
	notes := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(notes, []byte(strings.Repeat("Rivers carve valleys over thousands of years. ", 3)), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, cfgPath, "generate",
		"--theme", "Earth",
		"--topic", "Volcanoes@2",
		"--paste-file", notes,
		"--discard", "cat-0",
		"--title-option", "2",
	)
	if err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "custom sources") {
		t.Errorf("Expected custom source mode, got:\n%s", out)
	}
	if !strings.Contains(out, `"Earth Night" (5 categories)`) {
		t.Errorf("Expected the second title with one category discarded, got:\n%s", out)
	}
}

func TestGenerateRequiresThemeOrSources(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := runCLI(t, cfgPath, "generate"); err == nil {
		t.Error("Expected an error without theme or sources")
	}
	if _, err := runCLI(t, cfgPath, "generate", "--theme", "Space", "--difficulty", "brutal"); err == nil {
		t.Error("Expected an error for an unknown difficulty")
	}
}

func TestGenerateEstimate(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, cfgPath, "generate", "--topic", "Volcanoes", "--topic", "Jazz", "--estimate")
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if !strings.Contains(out, "Cost Estimation") || !strings.Contains(out, "Sources: 2") {
		t.Errorf("Unexpected estimate:\n%s", out)
	}
	if strings.Contains(out, "Saved game") {
		t.Error("Estimate should not generate")
	}
}

func TestGamesShowExportDeleteAudit(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, cfgPath, "generate", "--theme", "Jazz")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	m := savedID.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("No game id in output:\n%s", out)
	}
	id := m[1]

	out, err = runCLI(t, cfgPath, "games", "show", id)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.HasPrefix(out, "# Jazz Showdown") {
		t.Errorf("Expected markdown, got:\n%s", out)
	}

	exportDir := t.TempDir()
	out, err = runCLI(t, cfgPath, "games", "export", id, "--format", "json", "--output", exportDir)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "jazz-showdown.json")); err != nil {
		t.Errorf("Expected an exported file, output:\n%s", out)
	}

	out, err = runCLI(t, cfgPath, "games", "audit")
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	if !strings.Contains(out, "AUDIT REPORT (1 games)") {
		t.Errorf("Unexpected audit:\n%s", out)
	}

	if _, err := runCLI(t, cfgPath, "games", "delete", id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := runCLI(t, cfgPath, "games", "show", id); err == nil {
		t.Error("Deleted game should not be found")
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCLI(t, cfgPath, "migrate", "status"); err == nil {
		t.Error("Expected an error for sqlite storage")
	}
}

func TestSplitCount(t *testing.T) {
	tests := []struct {
		raw     string
		value   string
		count   int
		wantErr bool
	}{
		{"Volcanoes", "Volcanoes", 0, false},
		{"Volcanoes@2", "Volcanoes", 2, false},
		{" Jazz @ 3", "Jazz @ 3", 0, false},
		{"https://example.com/a@4", "https://example.com/a", 4, false},
		{"https://user@example.com/a", "https://user@example.com/a", 0, false},
		{"Volcanoes@0", "", 0, true},
		{"Volcanoes@7", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			value, count, err := splitCount(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitCount(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if value != tt.value || count != tt.count {
				t.Errorf("splitCount(%q) = %q, %d; want %q, %d", tt.raw, value, count, tt.value, tt.count)
			}
		})
	}
}

func TestDistributeCounts(t *testing.T) {
	tests := []struct {
		name    string
		counts  []int
		want    []int
		wantErr bool
	}{
		{"all open", []int{0, 0, 0, 0}, []int{2, 2, 1, 1}, false},
		{"mixed", []int{2, 0, 0}, []int{2, 2, 2}, false},
		{"explicit under budget", []int{1, 2}, []int{1, 2}, false},
		{"over budget", []int{4, 3}, nil, true},
		{"nothing left", []int{6, 0}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := append([]int(nil), tt.counts...)
			err := distributeCounts(counts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("distributeCounts(%v) error = %v, wantErr %v", tt.counts, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			total := 0
			for i, c := range counts {
				if c != tt.want[i] {
					t.Errorf("counts = %v, want %v", counts, tt.want)
					break
				}
				total += c
			}
			if total > core.BoardCategories {
				t.Errorf("Total %d exceeds the board", total)
			}
		})
	}
}
