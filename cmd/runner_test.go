package main

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/acctsync/internal/shared"
	tu "github.com/desertthunder/acctsync/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			status := tu.NewFakeStatusAPI()
			dest := tu.NewFakeDestination()

			runner := NewRunner(RunnerOpts{
				Config:      config,
				Logger:      logger,
				Output:      output,
				HTTPClient:  httpClient,
				Status:      status,
				Destination: dest,
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
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.status != status {
				t.Error("expected status client to be set")
			}
			if runner.dest != dest {
				t.Error("expected destination to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil clock uses real clock", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.clock == nil {
				t.Error("expected clock to default to the real clock")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file keeps defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})
			path := filepath.Join(t.TempDir(), "config.toml")

			if err := runner.loadConfig(path, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.configPath != path {
				t.Errorf("expected configPath %s, got %s", path, runner.configPath)
			}
			if runner.config.Database.Path != shared.DefaultConfig().Database.Path {
				t.Error("expected default config")
			}
		})

		t.Run("reads file and applies log level", func(t *testing.T) {
			logger := shared.NewLogger(&bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Logger: logger})
			path := filepath.Join(t.TempDir(), "config.toml")
			content := "[log]\nlevel = \"warn\"\n\n[database]\npath = \"./history.db\"\n"
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			if err := runner.loadConfig(path, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Database.Path != "./history.db" {
				t.Errorf("expected database path from file, got %s", runner.config.Database.Path)
			}
			if logger.GetLevel() != log.WarnLevel {
				t.Errorf("expected warn level, got %v", logger.GetLevel())
			}
		})

		t.Run("verbose wins over config level", func(t *testing.T) {
			logger := shared.NewLogger(&bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Logger: logger})

			if err := runner.loadConfig(filepath.Join(t.TempDir(), "none.toml"), true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if logger.GetLevel() != log.DebugLevel {
				t.Errorf("expected debug level, got %v", logger.GetLevel())
			}
		})

		t.Run("invalid file fails", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[log\nlevel ="), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			if err := runner.loadConfig(path, false); err == nil {
				t.Error("expected error for malformed config")
			}
		})
	})

	t.Run("lazy collaborators", func(t *testing.T) {
		t.Run("status client requires credentials", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.StatusAPI.Secret = ""
			runner := NewRunner(RunnerOpts{Config: config})

			if _, err := runner.statusClient(); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("status client is built once", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			first, err := runner.statusClient()
			if err != nil {
				t.Fatalf("expected default status config to be usable, got %v", err)
			}
			second, _ := runner.statusClient()
			if first != second {
				t.Error("expected the same status client on every call")
			}
		})

		t.Run("ledger rejects unknown driver", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Source.Driver = "mysql"
			runner := NewRunner(RunnerOpts{Config: config})

			if _, err := runner.ledgerDB(); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("history database is migrated and closed", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Path = filepath.Join(t.TempDir(), "history.db")
			runner := NewRunner(RunnerOpts{Config: config})

			repo, err := runner.runRepository()
			if err != nil {
				t.Fatalf("expected run repository, got %v", err)
			}
			if _, err := repo.List(nil); err != nil {
				t.Errorf("expected migrated runs table, got %v", err)
			}

			if err := runner.Close(); err != nil {
				t.Errorf("expected clean close, got %v", err)
			}
			if runner.history != nil {
				t.Error("expected closed history database to be forgotten")
			}
		})

		t.Run("engine without sync skips destination", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Sheets.SpreadsheetID = ""
			config.Database.Path = filepath.Join(t.TempDir(), "history.db")
			runner := NewRunner(RunnerOpts{Config: config, Status: tu.NewFakeStatusAPI(), Ledger: ledgerDB(t)})
			defer runner.Close()

			if _, err := runner.engine(t.Context(), true, false); err != nil {
				t.Errorf("expected engine without sync, got %v", err)
			}
			if _, err := runner.engine(t.Context(), true, true); err == nil {
				t.Error("expected error building sync without a spreadsheet id")
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

		t.Run("writes plain text without formatting", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("simple text")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "simple text" {
				t.Errorf("expected 'simple text', got %q", result)
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

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
				continue
			}
			names[cmd.Name] = true
		}
		for _, name := range []string{"setup", "run", "replay", "export", "runs", "sheets", "status"} {
			if !names[name] {
				t.Errorf("expected %q command to be registered", name)
			}
		}
	})
}
