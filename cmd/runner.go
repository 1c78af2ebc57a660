package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/acctsync/internal/repositories"
	"github.com/desertthunder/acctsync/internal/services"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/desertthunder/acctsync/internal/tasks"
	"github.com/desertthunder/acctsync/internal/throttle"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators not supplied through [RunnerOpts] are built lazily from the loaded config, so commands
// that never touch the ledger or the spreadsheet never need their credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	clock      throttle.Clock
	status     services.StatusClient
	dest       services.Destination
	ledger     *sql.DB
	history    *sql.DB
	owned      []*sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client // nil gets a client bounded by status_api.timeout
	Logger      *log.Logger
	Output      io.Writer
	Clock       throttle.Clock
	Status      services.StatusClient
	Destination services.Destination
	Ledger      *sql.DB
	History     *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = throttle.RealClock{}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		clock:      opts.Clock,
		status:     opts.Status,
		dest:       opts.Destination,
		ledger:     opts.Ledger,
		history:    opts.History,
	}
}

// SetLogger replaces the runner's logger, e.g. to keep log lines out of the TUI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases every database the runner opened itself.
func (r *Runner) Close() error {
	var first error
	for _, db := range r.owned {
		if db == r.ledger {
			r.ledger = nil
		}
		if db == r.history {
			r.history = nil
		}
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.owned = nil
	return first
}

// loadConfig reads path when it exists and keeps the defaults otherwise.
func (r *Runner) loadConfig(path string, verbose bool) error {
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if verbose {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return nil
}

func (r *Runner) ledgerDB() (*sql.DB, error) {
	if r.ledger != nil {
		return r.ledger, nil
	}
	if err := r.config.ValidateSource(); err != nil {
		return nil, err
	}

	db, err := shared.OpenDatabase(r.config.Source.Driver, r.config.Source.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSourceRead, err)
	}
	r.ledger = db
	r.owned = append(r.owned, db)
	return db, nil
}

func (r *Runner) historyDB() (*sql.DB, error) {
	if r.history != nil {
		return r.history, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	r.owned = append(r.owned, db)
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.history = db
	return db, nil
}

func (r *Runner) runRepository() (*repositories.RunRepository, error) {
	db, err := r.historyDB()
	if err != nil {
		return nil, err
	}
	return repositories.NewRunRepository(db), nil
}

func (r *Runner) statusClient() (services.StatusClient, error) {
	if r.status != nil {
		return r.status, nil
	}
	if err := r.config.ValidateStatusAPI(); err != nil {
		return nil, err
	}
	r.status = services.NewStatusService(r.config.StatusAPI, r.httpClient)
	return r.status, nil
}

func (r *Runner) destination(ctx context.Context) (services.Destination, error) {
	if r.dest != nil {
		return r.dest, nil
	}
	if err := r.config.ValidateSheets(); err != nil {
		return nil, err
	}

	dest, err := services.NewSheetsService(ctx, r.config.Sheets)
	if err != nil {
		return nil, err
	}
	r.dest = dest
	return dest, nil
}

func (r *Runner) sheetSync(ctx context.Context) (*tasks.SheetSync, error) {
	dest, err := r.destination(ctx)
	if err != nil {
		return nil, err
	}

	limits := r.config.Limits
	limiter := throttle.New(limits.SheetsCapacity, limits.SheetsSpacing, r.clock)
	return tasks.NewSheetSync(dest, limiter, r.clock, r.config.Sheets.ClearRows, r.config.Sheets.ClearCols, r.logger), nil
}

// engine wires a [tasks.ReconcileEngine]. Ledger and status API are only required when withSources is
// set; the spreadsheet only when withSync is.
func (r *Runner) engine(ctx context.Context, withSources, withSync bool) (*tasks.ReconcileEngine, error) {
	cfg := tasks.EngineConfig{Clock: r.clock, Logger: r.logger}

	if r.config.Snapshot.Enabled {
		cfg.SnapshotDir = r.config.Snapshot.Dir
	}

	if runs, err := r.runRepository(); err != nil {
		r.logger.Warn("run history unavailable", "error", err)
	} else {
		cfg.Runs = runs
	}

	if withSources {
		db, err := r.ledgerDB()
		if err != nil {
			return nil, err
		}
		status, err := r.statusClient()
		if err != nil {
			return nil, err
		}

		ledger := repositories.NewLedgerRepository(db, r.config.Source.Driver)
		limits := r.config.Limits
		limiter := throttle.New(limits.EnrichCapacity, limits.EnrichSpacing, r.clock)

		cfg.Sources = []repositories.RecordSource{
			repositories.NewTransactionSource(ledger),
			repositories.NewRefundSource(ledger),
			repositories.NewAccountSource(ledger),
		}
		cfg.Status = status
		cfg.Enricher = tasks.NewEnricher(ledger, status, limiter, limits.EnrichWorkers, r.logger)
	}

	if withSync {
		sync, err := r.sheetSync(ctx)
		if err != nil {
			return nil, err
		}
		cfg.Sync = sync
	}

	return tasks.NewReconcileEngine(cfg), nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, replayCommand, exportCommand, runsCommand, sheetsCommand, statusCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
