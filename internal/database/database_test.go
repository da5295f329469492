package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func listMigrations(t *testing.T, dir string) map[string]string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}

	files := make(map[string]string)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("failed to read %s: %v", entry.Name(), err)
		}
		files[entry.Name()] = string(data)
	}
	return files
}

// Each driver runs the DDL tree matching its dialect, so the two trees must
// stay in lockstep and free of the other dialect's syntax.
func TestMigrationDialects(t *testing.T) {
	root := filepath.Join("..", "..", "migrations")
	sqliteFiles := listMigrations(t, filepath.Join(root, "sqlite"))
	postgresFiles := listMigrations(t, filepath.Join(root, "postgres"))

	t.Run("same migration set per dialect", func(t *testing.T) {
		if len(sqliteFiles) != len(postgresFiles) {
			t.Fatalf("expected same file count, got sqlite=%d postgres=%d", len(sqliteFiles), len(postgresFiles))
		}
		for name := range sqliteFiles {
			if _, ok := postgresFiles[name]; !ok {
				t.Errorf("migration %s has no postgres counterpart", name)
			}
		}
	})

	t.Run("postgres DDL avoids sqlite-only syntax", func(t *testing.T) {
		for name, sql := range postgresFiles {
			upper := strings.ToUpper(sql)
			if strings.Contains(upper, "AUTOINCREMENT") {
				t.Errorf("%s: AUTOINCREMENT is not valid postgres", name)
			}
			if strings.Contains(upper, "DATETIME") {
				t.Errorf("%s: DATETIME is not a postgres type", name)
			}
		}
	})

	t.Run("sqlite DDL avoids postgres-only syntax", func(t *testing.T) {
		for name, sql := range sqliteFiles {
			upper := strings.ToUpper(sql)
			if strings.Contains(upper, "BIGSERIAL") || strings.Contains(upper, "TIMESTAMPTZ") {
				t.Errorf("%s: postgres-only type in sqlite DDL", name)
			}
		}
	})
}
