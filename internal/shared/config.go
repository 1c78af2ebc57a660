package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Source    SourceConfig    `toml:"source"`
	Database  DatabaseConfig  `toml:"database"`
	StatusAPI StatusAPIConfig `toml:"status_api"`
	Sheets    SheetsConfig    `toml:"sheets"`
	Limits    LimitsConfig    `toml:"limits"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	Log       LogConfig       `toml:"log"`
}

// SourceConfig points at the ledger database holding transactions, refunds, accounts and providers.
type SourceConfig struct {
	Driver string `toml:"driver"` // sqlite3 or postgres
	DSN    string `toml:"dsn"`
}

// DatabaseConfig contains the local run-history database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StatusAPIConfig contains credentials for the external account-status API.
type StatusAPIConfig struct {
	BaseURL        string        `toml:"base_url"`
	AccountID      string        `toml:"account_id"`
	Secret         string        `toml:"secret"`
	Timeout        time.Duration `toml:"timeout"`
	SessionTimeout time.Duration `toml:"session_timeout"`
}

// SheetsConfig contains the destination spreadsheet settings.
//
// Either CredentialsFile (service account) or ClientSecretFile + TokenFile (installed app OAuth) must be set.
type SheetsConfig struct {
	SpreadsheetID    string `toml:"spreadsheet_id"`
	CredentialsFile  string `toml:"credentials_file"`
	ClientSecretFile string `toml:"client_secret_file"`
	TokenFile        string `toml:"token_file"`
	RedirectPort     int    `toml:"redirect_port"`
	ClearRows        int64  `toml:"clear_rows"`
	ClearCols        int64  `toml:"clear_cols"`
}

// LimitsConfig bounds concurrency and request spacing for each remote system.
type LimitsConfig struct {
	EnrichWorkers  int           `toml:"enrich_workers"`
	EnrichCapacity int64         `toml:"enrich_capacity"`
	EnrichSpacing  time.Duration `toml:"enrich_spacing"`
	SheetsCapacity int64         `toml:"sheets_capacity"`
	SheetsSpacing  time.Duration `toml:"sheets_spacing"`
}

// SnapshotConfig controls the per-run JSON artifact.
type SnapshotConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateSource checks the ledger source settings.
func (c *Config) ValidateSource() error {
	switch c.Source.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: unsupported source driver %q", ErrInvalidConfig, c.Source.Driver)
	}
	if c.Source.DSN == "" {
		return fmt.Errorf("%w: source.dsn is empty", ErrInvalidConfig)
	}
	return nil
}

// ValidateStatusAPI checks the status API settings.
func (c *Config) ValidateStatusAPI() error {
	if c.StatusAPI.BaseURL == "" {
		return fmt.Errorf("%w: status_api.base_url is empty", ErrInvalidConfig)
	}
	if c.StatusAPI.AccountID == "" || c.StatusAPI.Secret == "" {
		return fmt.Errorf("%w: status_api.account_id and status_api.secret are required", ErrMissingCredentials)
	}
	return nil
}

// ValidateSheets checks the destination spreadsheet settings.
func (c *Config) ValidateSheets() error {
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("%w: sheets.spreadsheet_id is empty", ErrInvalidConfig)
	}
	if c.Sheets.CredentialsFile == "" && (c.Sheets.ClientSecretFile == "" || c.Sheets.TokenFile == "") {
		return fmt.Errorf("%w: set sheets.credentials_file or sheets.client_secret_file with sheets.token_file", ErrMissingCredentials)
	}
	if c.Sheets.ClearRows <= 0 || c.Sheets.ClearCols <= 0 {
		return fmt.Errorf("%w: sheets.clear_rows and sheets.clear_cols must be positive", ErrInvalidConfig)
	}
	return nil
}
