package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/shared"
	tu "github.com/cratedig/cratedig/internal/testing"
	"github.com/urfave/cli/v3"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		DB:     newTestDB(t),
		Logger: shared.NewLogger(io.Discard),
		Output: output,
	})
	return runner, output
}

// runCLI runs one registered command the way main does.
func runCLI(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "cratedig", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"cratedig"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			db := newTestDB(t)

			runner := NewRunner(RunnerOpts{
				Config: config,
				DB:     db,
				Logger: logger,
				Output: output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.db != db {
				t.Error("expected db to be set")
			}
			if runner.store == nil {
				t.Error("expected store to be built from db")
			}
			if runner.engine == nil {
				t.Error("expected engine to be built")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("without db leaves store and engine nil", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.store != nil || runner.engine != nil {
				t.Error("expected no store or engine without a database")
			}
			if err := runner.requireStore(); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})
}

func TestSetupDatabase(t *testing.T) {
	t.Run("creates config from template and initializes database", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		runner, _ := newTestRunner(t)
		configPath := filepath.Join(dir, "config.toml")

		if err := runCLI(t, runner, "setup", "database", "--config", configPath); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, configPath)
		tu.AssertFileExists(t, filepath.Join(dir, "cratedig.db"))
	})

	t.Run("uses database path from existing config", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		dbPath := filepath.Join(dir, "custom.db")

		conf := "[database]\npath = \"" + dbPath + "\"\nmax_open_conns = 2\nmax_idle_conns = 1\n"
		if err := os.WriteFile(configPath, []byte(conf), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner, _ := newTestRunner(t)
		if err := runCLI(t, runner, "setup", "database", "--config", configPath); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, dbPath)
	})
}

func TestProfileCommands(t *testing.T) {
	t.Run("add, approve, and list", func(t *testing.T) {
		runner, output := newTestRunner(t)

		err := runCLI(t, runner, "profile", "add",
			"--user", "dj", "--playlist-id", "pl1",
			"--period", "week", "--release-year", "all")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		profiles, err := runner.store.Profiles.List()
		if err != nil {
			t.Fatalf("failed to list profiles: %v", err)
		}
		if len(profiles) != 1 || profiles[0].HistoryID != "dj" {
			t.Fatalf("unexpected profiles %+v", profiles)
		}
		if profiles[0].Period != models.PeriodWeek || profiles[0].ReleaseYear != "ALL" {
			t.Errorf("expected normalized period and release year, got %+v", profiles[0])
		}
		if profiles[0].Approved {
			t.Error("expected new profile to start unapproved")
		}

		if err := runCLI(t, runner, "profile", "approve", "--id", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		approved, err := runner.store.Profiles.Approved()
		if err != nil {
			t.Fatalf("failed to list approved: %v", err)
		}
		if len(approved) != 1 {
			t.Errorf("expected 1 approved profile, got %d", len(approved))
		}

		output.Reset()
		if err := runCLI(t, runner, "profile", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "dj") || !strings.Contains(output.String(), "approved") {
			t.Errorf("unexpected list output %q", output.String())
		}
	})

	t.Run("rejects invalid period", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		err := runCLI(t, runner, "profile", "add", "--user", "dj", "--period", "MONTH")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects half-open active hours", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		err := runCLI(t, runner, "profile", "add", "--user", "dj", "--active-start", "22:00")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects malformed release year", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		err := runCLI(t, runner, "profile", "add", "--user", "dj", "--release-year", "90s")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestServiceGuards(t *testing.T) {
	t.Run("pipeline commands require the database", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})

		for _, args := range [][]string{
			{"ingest"},
			{"resolve"},
			{"enrich", "durations"},
			{"errors"},
		} {
			if err := runCLI(t, runner, args...); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("%v: expected ErrServiceUnavailable, got %v", args, err)
			}
		}
	})

	t.Run("resolve requires the catalog service", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		if err := runCLI(t, runner, "resolve"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("ingest requires the history service", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		if err := runCLI(t, runner, "ingest"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestPlaylistExport(t *testing.T) {
	seedPicks := func(t *testing.T, r *Runner) {
		t.Helper()
		err := r.store.Picks.Replace(1, []models.PlaylistPick{
			{Listener: 1, Rank: 1, Artist: "Neutral Milk Hotel", Album: "In the Aeroplane Over the Sea", Track: "Holland, 1945"},
			{Listener: 1, Rank: 2, Artist: "Broadcast", Album: "Tender Buttons", Track: "Black Cat"},
		})
		if err != nil {
			t.Fatalf("failed to seed picks: %v", err)
		}
	}

	t.Run("writes JSON to stdout", func(t *testing.T) {
		runner, output := newTestRunner(t)
		seedPicks(t, runner)

		if err := runCLI(t, runner, "playlist", "export", "--profile", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Neutral Milk Hotel") {
			t.Errorf("expected picks in output, got %q", output.String())
		}
	})

	t.Run("writes JSON to a file", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		seedPicks(t, runner)

		path := filepath.Join(t.TempDir(), "picks.json")
		if err := runCLI(t, runner, "playlist", "export", "--profile", "1", "-o", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "Black Cat") {
			t.Errorf("expected picks in file, got %q", content)
		}
	})

	t.Run("writes CSV with a header row", func(t *testing.T) {
		runner, output := newTestRunner(t)
		seedPicks(t, runner)

		if err := runCLI(t, runner, "playlist", "export", "--profile", "1", "--format", "csv"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %q", output.String())
		}
		if lines[0] != "rank,artist,album,track,catalog_track_id,storefront_url" {
			t.Errorf("unexpected header %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "1,Neutral Milk Hotel") {
			t.Errorf("unexpected first row %q", lines[1])
		}
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		err := runCLI(t, runner, "playlist", "export", "--profile", "1", "--format", "yaml")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestErrors(t *testing.T) {
	t.Run("prints recent failures newest first", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runner.store.Errors.Record("resolve", "a|b|c", "timeout"); err != nil {
			t.Fatalf("failed to record error: %v", err)
		}

		if err := runCLI(t, runner, "errors"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "resolve") || !strings.Contains(output.String(), "timeout") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("reports an empty log", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runCLI(t, runner, "errors"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No recorded failures") {
			t.Errorf("unexpected output %q", output.String())
		}
	})
}
