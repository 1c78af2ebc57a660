package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./acctsync.db" {
			t.Errorf("expected database path ./acctsync.db, got %s", config.Database.Path)
		}
		if config.Source.Driver != "sqlite3" {
			t.Errorf("expected sqlite3 source driver, got %s", config.Source.Driver)
		}
		if config.StatusAPI.Timeout != 30*time.Second {
			t.Errorf("expected 30s status api timeout, got %v", config.StatusAPI.Timeout)
		}
		if config.Limits.EnrichCapacity != 50 {
			t.Errorf("expected enrich capacity 50, got %d", config.Limits.EnrichCapacity)
		}
		if config.Limits.SheetsSpacing != time.Second {
			t.Errorf("expected sheets spacing 1s, got %v", config.Limits.SheetsSpacing)
		}
		if config.Sheets.ClearRows != 1000 || config.Sheets.ClearCols != 10 {
			t.Errorf("expected 1000x10 clear region, got %dx%d", config.Sheets.ClearRows, config.Sheets.ClearCols)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[source]
driver = "postgres"
dsn = "postgres://ledger@localhost/agency?sslmode=disable"

[status_api]
base_url = "http://localhost:9090"
account_id = "mcc-1"
secret = "s3cret"
timeout = "5s"

[limits]
enrich_workers = 4
sheets_spacing = "250ms"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Source.Driver != "postgres" {
			t.Errorf("expected postgres driver, got %s", config.Source.Driver)
		}
		if config.StatusAPI.Timeout != 5*time.Second {
			t.Errorf("expected 5s timeout, got %v", config.StatusAPI.Timeout)
		}
		if config.Limits.EnrichWorkers != 4 {
			t.Errorf("expected 4 workers, got %d", config.Limits.EnrichWorkers)
		}
		if config.Limits.SheetsSpacing != 250*time.Millisecond {
			t.Errorf("expected 250ms spacing, got %v", config.Limits.SheetsSpacing)
		}
		if config.Sheets.ClearRows != 1000 {
			t.Errorf("expected unset keys to keep defaults, got clear_rows=%d", config.Sheets.ClearRows)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestConfigValidation(t *testing.T) {
	t.Run("Source", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ValidateSource(); err != nil {
			t.Errorf("expected default source to be valid, got %v", err)
		}

		config.Source.Driver = "mysql"
		if err := config.ValidateSource(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("StatusAPI", func(t *testing.T) {
		config := DefaultConfig()
		config.StatusAPI.Secret = ""
		if err := config.ValidateStatusAPI(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Sheets", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ValidateSheets(); err != nil {
			t.Errorf("expected default sheets config to be valid, got %v", err)
		}

		config.Sheets.TokenFile = ""
		if err := config.ValidateSheets(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials without token file, got %v", err)
		}

		config.Sheets.CredentialsFile = "sa.json"
		if err := config.ValidateSheets(); err != nil {
			t.Errorf("expected service account config to be valid, got %v", err)
		}

		config.Sheets.ClearRows = 0
		if err := config.ValidateSheets(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for empty clear region, got %v", err)
		}
	})
}
