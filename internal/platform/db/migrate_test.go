package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name         string
		files        map[string]string
		wantVersions []int
		wantNames    []string
	}{
		{
			"sorted by version not by directory order",
			map[string]string{
				"010_indexes.sql":   "SELECT 10;",
				"001_documents.sql": "SELECT 1;",
				"005_refs.sql":      "SELECT 5;",
			},
			[]int{1, 5, 10},
			[]string{"001_documents.sql", "005_refs.sql", "010_indexes.sql"},
		},
		{
			"files without a numeric prefix are skipped",
			map[string]string{
				"001_documents.sql": "SELECT 1;",
				"notes.txt":         "not sql",
				"readme.sql":        "-- no version",
				"abc_bad.sql":       "-- non numeric",
			},
			[]int{1},
			[]string{"001_documents.sql"},
		},
		{
			"empty directory yields no migrations",
			map[string]string{},
			nil,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeMigrations(t, tt.files)
			got, err := NewMigrator(nil, dir).LoadMigrations()
			if err != nil {
				t.Fatalf("LoadMigrations: %v", err)
			}
			if len(got) != len(tt.wantVersions) {
				t.Fatalf("got %d migrations, want %d", len(got), len(tt.wantVersions))
			}
			for i := range got {
				if got[i].Version != tt.wantVersions[i] {
					t.Errorf("migration %d version = %d, want %d", i, got[i].Version, tt.wantVersions[i])
				}
				if got[i].Name != tt.wantNames[i] {
					t.Errorf("migration %d name = %q, want %q", i, got[i].Name, tt.wantNames[i])
				}
				if got[i].SQL == "" {
					t.Errorf("migration %d has empty SQL", i)
				}
			}
		})
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	_, err := NewMigrator(nil, filepath.Join(t.TempDir(), "absent")).LoadMigrations()
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

// The shipped migrations must stay loadable and must keep creating the
// documents table the store and the SQL target depend on.
func TestLoadMigrations_Shipped(t *testing.T) {
	migs, err := NewMigrator(nil, filepath.Join("..", "..", "..", "migrations")).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migs) == 0 {
		t.Fatal("expected at least one shipped migration")
	}
	if migs[0].Version != 1 || migs[0].Name != "001_documents.sql" {
		t.Fatalf("first migration = %d %q, want 1 %q", migs[0].Version, migs[0].Name, "001_documents.sql")
	}
	if !strings.Contains(migs[0].SQL, "CREATE TABLE IF NOT EXISTS documents") {
		t.Error("001_documents.sql should create the documents table")
	}
	if !strings.Contains(migs[0].SQL, "GIN (data)") {
		t.Error("001_documents.sql should index data with a GIN index")
	}
}
