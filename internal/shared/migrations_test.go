package shared

import (
	"testing"
	"time"
)

func TestRunMigrations(t *testing.T) {
	t.Run("Applies the embedded schema", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		t.Cleanup(func() { db.Close() })

		if err := RunMigrations(db); err != nil {
			t.Fatalf("expected migrations to apply, got %v", err)
		}

		_, err = db.Exec(
			`INSERT INTO listening_events (listener, artist, album, track, played_at) VALUES (?, ?, ?, ?, ?)`,
			1, "Low", "Things We Lost in the Fire", "Sunflower", time.Now(),
		)
		if err != nil {
			t.Errorf("expected schema tables to exist, got %v", err)
		}
	})

	t.Run("Is idempotent", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		t.Cleanup(func() { db.Close() })

		if err := RunMigrations(db); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Errorf("second run failed: %v", err)
		}
	})
}

func TestApplyMigration(t *testing.T) {
	t.Run("Semicolon inside a comment is not a statement break", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		t.Cleanup(func() { db.Close() })

		if err := createMigrationsTable(db); err != nil {
			t.Fatalf("failed to create migrations table: %v", err)
		}

		m := Migration{
			Version: 99,
			Up: `-- first table; commentary after a semicolon
CREATE TABLE one (id INTEGER PRIMARY KEY);
CREATE TABLE two (id INTEGER PRIMARY KEY); -- trailing note
`,
		}
		if err := applyMigration(db, m); err != nil {
			t.Fatalf("expected migration to apply, got %v", err)
		}

		for _, table := range []string{"one", "two"} {
			if _, err := db.Exec(`INSERT INTO ` + table + ` DEFAULT VALUES`); err != nil {
				t.Errorf("expected table %s to exist, got %v", table, err)
			}
		}
	})
}
