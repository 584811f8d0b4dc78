package persistence

import (
	"strings"
	"testing"
)

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		name    string
		version int
		title   string
		wantErr bool
	}{
		{"migrations/001_create_games.sql", 1, "create games", false},
		{"012_add_index.sql", 12, "add index", false},
		{"create_games.sql", 0, "", true},
		{"000_zero.sql", 0, "", true},
		{"games.sql", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, title, err := parseMigrationName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMigrationName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && (version != tt.version || title != tt.title) {
				t.Errorf("parseMigrationName(%q) = %d, %q; want %d, %q", tt.name, version, title, tt.version, tt.title)
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := embeddedMigrations()
	if err != nil {
		t.Fatalf("embeddedMigrations failed: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("Expected at least one migration")
	}
	if migrations[0].Version != 1 || !strings.Contains(migrations[0].SQL, "CREATE TABLE IF NOT EXISTS games") {
		t.Errorf("Unexpected first migration %d %q", migrations[0].Version, migrations[0].Name)
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Errorf("Migrations out of order: %d after %d", migrations[i].Version, migrations[i-1].Version)
		}
	}

	s := MigrationStatus{Migration: migrations[0]}
	if s.Applied() {
		t.Error("Status without a time should be pending")
	}
}
