package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/acctsync/internal/formatter"
	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/desertthunder/acctsync/internal/tasks"
	"github.com/desertthunder/acctsync/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/acctsync-tui.log"

// runSummary is the JSON shape of a finished run.
type runSummary struct {
	ID           string            `json:"id"`
	Mode         models.RunMode    `json:"mode"`
	Status       models.RunStatus  `json:"status"`
	Identities   int               `json:"identities"`
	RowsEnriched int               `json:"rows_enriched"`
	RowsDropped  int               `json:"rows_dropped"`
	TeamsSynced  int               `json:"teams_synced"`
	TeamsFailed  int               `json:"teams_failed"`
	SnapshotPath string            `json:"snapshot_path,omitempty"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     string            `json:"duration"`
	FailedTeams  map[string]string `json:"failed_teams,omitempty"`
	Drops        []dropSummary     `json:"drops,omitempty"`
}

type dropSummary struct {
	AccountUID   string `json:"account_uid"`
	ProviderUUID string `json:"provider_uuid"`
	Team         string `json:"team"`
	Stage        string `json:"stage"`
	Reason       string `json:"reason"`
}

func summarize(run *models.Run, drops []models.Drop, failed map[string]error) runSummary {
	s := runSummary{
		ID:           run.ID(),
		Mode:         run.Mode,
		Status:       run.Status,
		Identities:   run.Identities,
		RowsEnriched: run.RowsEnriched,
		RowsDropped:  run.RowsDropped,
		TeamsSynced:  run.TeamsSynced,
		TeamsFailed:  run.TeamsFailed,
		SnapshotPath: run.SnapshotPath,
		Error:        run.ErrorMessage,
		StartedAt:    run.StartedAt,
		Duration:     run.Duration().Round(time.Millisecond).String(),
	}
	for team, err := range failed {
		if s.FailedTeams == nil {
			s.FailedTeams = map[string]string{}
		}
		s.FailedTeams[team] = err.Error()
	}
	for _, d := range drops {
		s.Drops = append(s.Drops, dropSummary{
			AccountUID:   d.Identity.AccountUID,
			ProviderUUID: d.Identity.ProviderUUID,
			Team:         d.Identity.TeamName,
			Stage:        string(d.Stage),
			Reason:       d.Reason,
		})
	}
	return s
}

// Run performs a full reconciliation.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	opts := tasks.RunOptions{
		DryRun:     cmd.Bool("dry-run"),
		NoSnapshot: cmd.Bool("no-snapshot"),
	}

	return r.execute(ctx, cmd, "Account reconciliation", true, !opts.DryRun,
		func(engine *tasks.ReconcileEngine) ui.RunFunc {
			return func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
				return engine.Run(ctx, progress, opts)
			}
		},
	)
}

// Replay syncs a saved snapshot without reading the ledger or the status API.
func (r *Runner) Replay(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: snapshot path", shared.ErrMissingArgument)
	}

	return r.execute(ctx, cmd, "Replay "+filepath.Base(path), false, true,
		func(engine *tasks.ReconcileEngine) ui.RunFunc {
			return func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
				return engine.Replay(ctx, progress, path)
			}
		},
	)
}

// execute wires an engine and drives one run through the TUI, JSON or plain output.
func (r *Runner) execute(
	ctx context.Context, cmd *cli.Command, title string, withSources, withSync bool,
	bind func(*tasks.ReconcileEngine) ui.RunFunc,
) error {
	defer r.Close()

	tui := cmd.Bool("tui")
	if tui {
		// Redirect logs to file to avoid interfering with TUI rendering
		fileLogger, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	engine, err := r.engine(ctx, withSources, withSync)
	if err != nil {
		return err
	}
	run := bind(engine)

	if tui {
		p := tea.NewProgram(ui.NewModel(ctx, title, run), tea.WithContext(ctx))
		final, err := p.Run()
		if err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return tuiError(final)
	}

	if cmd.Bool("json") {
		result, err := run(ctx, nil)
		if result == nil || result.Run == nil {
			return err
		}
		if werr := r.writeJSON(summarize(result.Run, result.Drops, syncFailures(result)), cmd.Bool("pretty")); werr != nil {
			return werr
		}
		return err
	}

	r.writePlain("%s\n\n", title)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		r.printProgress(progressCh)
	}()

	result, err := run(ctx, progressCh)
	close(progressCh)
	<-printed

	if result != nil && result.Run != nil {
		r.printResult(result)
	}
	return err
}

func syncFailures(result *tasks.RunResult) map[string]error {
	if result.Sync == nil {
		return nil
	}
	return result.Sync.Failed
}

func (r *Runner) printProgress(progressCh <-chan tasks.ProgressUpdate) {
	last := tasks.Phase(-1)
	for update := range progressCh {
		if update.Phase != last {
			r.writePlain("\n▶ %s\n", update.Phase)
			last = update.Phase
		}
		if update.Total > 1 {
			r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
		} else {
			r.writePlain("   %s\n", update.Message)
		}
	}
}

func (r *Runner) printResult(result *tasks.RunResult) {
	run := result.Run

	r.writePlain("\n")
	switch run.Status {
	case models.RunCompleted:
		r.writePlainHeader("Run Complete!")
	case models.RunPartial:
		r.writePlainHeader("Run Partially Complete")
	default:
		r.writePlainHeader("Run Failed")
	}

	r.writePlain("Run: %s (%s)\n", run.ID(), run.Mode)
	r.writePlain("Identities: %d\n", run.Identities)
	r.writePlain("Rows: %d enriched, %d dropped\n", run.RowsEnriched, run.RowsDropped)
	r.writePlain("Teams: %d synced, %d failed\n", run.TeamsSynced, run.TeamsFailed)
	if result.SnapshotPath != "" {
		r.writePlain("Snapshot: %s\n", result.SnapshotPath)
	}
	r.writePlain("Duration: %s\n", run.Duration().Round(time.Millisecond))
	if run.ErrorMessage != "" {
		r.writePlain("Error: %s\n", run.ErrorMessage)
	}

	if failed := syncFailures(result); len(failed) > 0 {
		r.writePlain("\nFailed teams:\n")
		teams := make([]string, 0, len(failed))
		for team := range failed {
			teams = append(teams, team)
		}
		slices.Sort(teams)
		for _, team := range teams {
			r.writePlain("  - %s: %v\n", team, failed[team])
		}
	}

	if len(result.Drops) > 0 {
		r.writePlain("\nDropped %d identities:\n", len(result.Drops))
		for _, d := range result.Drops {
			r.writePlain("  - %s [%s] %s\n", d.Identity, d.Stage, d.Reason)
		}
	}
}

// Export converts a snapshot to CSV or JSON.
//
// The snapshot is the path argument, the one written by --run, or the newest in snapshot.dir.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	defer r.Close()

	path, err := r.resolveSnapshot(cmd.StringArg("path"), cmd.String("run"))
	if err != nil {
		return err
	}

	reports, err := formatter.LoadSnapshot(path)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if err := formatter.WriteExport(reports, output, cmd.String("format")); err != nil {
		return err
	}

	rows := 0
	for _, report := range reports {
		rows += len(report.Rows)
	}
	r.logger.Info("exported snapshot", "snapshot", path, "output", output, "teams", len(reports), "rows", rows)
	return r.writePlain("✓ Exported %d teams (%d rows) from %s to %s\n", len(reports), rows, path, output)
}

func (r *Runner) resolveSnapshot(path, runID string) (string, error) {
	if path != "" {
		return path, nil
	}

	if runID != "" {
		runs, err := r.runRepository()
		if err != nil {
			return "", err
		}
		run, err := runs.Get(runID)
		if err != nil {
			return "", err
		}
		if run.SnapshotPath == "" {
			return "", fmt.Errorf("%w: run %s wrote no snapshot", shared.ErrRecordNotFound, runID)
		}
		return run.SnapshotPath, nil
	}

	matches, err := filepath.Glob(filepath.Join(r.config.Snapshot.Dir, "data_*.json"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no snapshots in %s", shared.ErrMissingArgument, r.config.Snapshot.Dir)
	}
	// Names embed a zero-padded timestamp, so the lexical max is the newest.
	return slices.Max(matches), nil
}

// tuiError returns the failure of the run the TUI drove, so a failed run exits non-zero.
func tuiError(final tea.Model) error {
	if m, ok := final.(*ui.Model); ok {
		return m.Err()
	}
	return nil
}
