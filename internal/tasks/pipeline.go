package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/acctsync/internal/formatter"
	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/repositories"
	"github.com/desertthunder/acctsync/internal/services"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/desertthunder/acctsync/internal/throttle"
	"golang.org/x/sync/errgroup"
)

// RunStore persists run history. [repositories.RunRepository] implements it.
type RunStore interface {
	Create(run *models.Run) error
	Update(run *models.Run) error
	AddDrops(runID string, drops []models.Drop) error
}

// RunOptions adjusts a pipeline run.
type RunOptions struct {
	DryRun     bool // Build reports without writing to the spreadsheet
	NoSnapshot bool // Skip the JSON artifact
}

// RunResult contains everything a pipeline run produced.
type RunResult struct {
	Run          *models.Run
	Identities   []models.Identity
	Reports      []models.TeamReport
	Drops        []models.Drop
	SnapshotPath string
	Sync         *SyncResult
}

// EngineConfig holds the collaborators of a [ReconcileEngine]. Runs and SnapshotDir are optional;
// Sync may be nil when only dry runs are made.
type EngineConfig struct {
	Sources     []repositories.RecordSource
	Status      services.StatusClient
	Enricher    *Enricher
	Sync        *SheetSync
	Runs        RunStore
	SnapshotDir string
	Clock       throttle.Clock
	Logger      *log.Logger
}

// ReconcileEngine runs the reconciliation pipeline: read sources, merge identities, authenticate,
// enrich, assemble team reports, snapshot and sync.
type ReconcileEngine struct {
	sources     []repositories.RecordSource
	status      services.StatusClient
	enricher    *Enricher
	sync        *SheetSync
	runs        RunStore
	snapshotDir string
	clock       throttle.Clock
	logger      *log.Logger
}

// NewReconcileEngine creates a ReconcileEngine from cfg.
func NewReconcileEngine(cfg EngineConfig) *ReconcileEngine {
	if cfg.Clock == nil {
		cfg.Clock = throttle.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}
	return &ReconcileEngine{
		sources:     cfg.Sources,
		status:      cfg.Status,
		enricher:    cfg.Enricher,
		sync:        cfg.Sync,
		runs:        cfg.Runs,
		snapshotDir: cfg.SnapshotDir,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
}

// Run performs one full reconciliation.
//
// Source read failures, dropped identities and failed teams do not fail the run; they make it partial.
// Authentication failure and cancellation do.
func (e *ReconcileEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts RunOptions) (*RunResult, error) {
	if e.status == nil || e.enricher == nil {
		return nil, fmt.Errorf("%w: status client not initialized", shared.ErrServiceUnavailable)
	}
	if !opts.DryRun && e.sync == nil {
		return nil, fmt.Errorf("%w: spreadsheet sync not initialized", shared.ErrServiceUnavailable)
	}

	mode := models.ModeFull
	if opts.DryRun {
		mode = models.ModeDryRun
	}
	result := &RunResult{Run: models.NewRun(mode)}
	if err := e.begin(result.Run); err != nil {
		return nil, err
	}

	records := e.readSources(ctx, progress)
	result.Identities = Merge(e.logger, records[models.KindTransaction], records[models.KindRefund], records[models.KindAccount])
	result.Run.Identities = len(result.Identities)
	sendProgress(progress, mergeUpdate(len(result.Identities)))
	e.logger.Info("merged identities", "count", len(result.Identities))

	session, err := e.status.Authenticate(ctx)
	sendProgress(progress, authenticateUpdate(err))
	if err != nil {
		if !errors.Is(err, shared.ErrAuthFailed) {
			err = fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
		}
		return result, e.finish(result, err)
	}

	enriched, err := e.enricher.EnrichAll(ctx, session, result.Identities, progress)
	result.Drops = append(result.Drops, enriched.Drops...)
	result.Run.RowsEnriched = len(enriched.Rows)
	if err != nil {
		return result, e.finish(result, err)
	}

	result.Reports = Reports(Assemble(enriched.Rows))
	sendProgress(progress, assembleUpdate(len(result.Reports), len(enriched.Rows)))

	if !opts.NoSnapshot {
		result.SnapshotPath = e.snapshot(result.Reports, progress)
		result.Run.SnapshotPath = result.SnapshotPath
	}

	if opts.DryRun {
		return result, e.finish(result, nil)
	}
	return result, e.finish(result, e.syncReports(ctx, result, progress))
}

// Replay syncs the reports stored in a snapshot without reading sources or calling the status API.
func (e *ReconcileEngine) Replay(ctx context.Context, progress chan<- ProgressUpdate, path string) (*RunResult, error) {
	if e.sync == nil {
		return nil, fmt.Errorf("%w: spreadsheet sync not initialized", shared.ErrServiceUnavailable)
	}

	reports, err := formatter.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Run: models.NewRun(models.ModeReplay), Reports: reports, SnapshotPath: path}
	result.Run.SnapshotPath = path
	for _, report := range reports {
		result.Run.RowsEnriched += len(report.Rows)
	}
	if err := e.begin(result.Run); err != nil {
		return nil, err
	}

	e.logger.Info("replaying snapshot", "path", path, "teams", len(reports), "rows", result.Run.RowsEnriched)
	return result, e.finish(result, e.syncReports(ctx, result, progress))
}

// readSources reads every source concurrently. A source that fails is logged and contributes no records.
func (e *ReconcileEngine) readSources(ctx context.Context, progress chan<- ProgressUpdate) map[models.RecordKind][]models.Record {
	results := make([][]models.Record, len(e.sources))
	var step atomic.Int32

	var g errgroup.Group
	for i, src := range e.sources {
		g.Go(func() error {
			records, err := src.Records(ctx)
			sendProgress(progress, readSourceUpdate(int(step.Add(1)), len(e.sources), src.Name(), len(records), err))
			if err != nil {
				e.logger.Error("source read failed, treating as empty", "source", src.Name(), "error", err)
				return nil
			}
			e.logger.Debug("source read", "source", src.Name(), "records", len(records))
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	byKind := make(map[models.RecordKind][]models.Record)
	for i, src := range e.sources {
		byKind[src.Kind()] = append(byKind[src.Kind()], results[i]...)
	}
	return byKind
}

func (e *ReconcileEngine) snapshot(reports []models.TeamReport, progress chan<- ProgressUpdate) string {
	if e.snapshotDir == "" {
		return ""
	}

	path, err := formatter.WriteSnapshot(e.snapshotDir, reports, e.clock.Now())
	sendProgress(progress, snapshotUpdate(path, err))
	if err != nil {
		e.logger.Error("snapshot failed", "dir", e.snapshotDir, "error", err)
		return ""
	}
	e.logger.Info("snapshot written", "path", path)
	return path
}

// syncReports writes the reports and records a sync drop for every row of a failed team.
func (e *ReconcileEngine) syncReports(ctx context.Context, result *RunResult, progress chan<- ProgressUpdate) error {
	synced, err := e.sync.Sync(ctx, result.Reports, progress)
	result.Sync = synced
	if synced != nil {
		result.Run.TeamsSynced = len(synced.Synced)
		result.Run.TeamsFailed = len(synced.Failed)

		for _, report := range result.Reports {
			teamErr, failed := synced.Failed[report.Team]
			if !failed {
				continue
			}
			for _, row := range report.Rows {
				result.Drops = append(result.Drops, models.Drop{Identity: row.Identity, Stage: models.StageSync, Reason: teamErr.Error()})
			}
		}
	}
	return err
}

// begin marks the run as running and stores it.
func (e *ReconcileEngine) begin(run *models.Run) error {
	run.Status = models.RunRunning
	if e.runs == nil {
		return nil
	}
	if err := e.runs.Create(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// finish derives the final run status, stores it with its drops and returns err unchanged.
// Storage failures are logged so they never mask the outcome of the run.
func (e *ReconcileEngine) finish(result *RunResult, err error) error {
	run := result.Run
	run.RowsDropped = len(result.Drops)
	run.Finish(err)

	logger := shared.WithLogger(e.logger, "mode", run.Mode, "status", run.Status)
	logger.Info("run finished",
		"identities", run.Identities,
		"rows", run.RowsEnriched,
		"dropped", run.RowsDropped,
		"teams_synced", run.TeamsSynced,
		"teams_failed", run.TeamsFailed,
		"duration", run.Duration(),
	)

	if e.runs == nil {
		return err
	}
	if storeErr := e.runs.Update(run); storeErr != nil {
		logger.Error("failed to update run", "id", run.ID(), "error", storeErr)
	}
	if len(result.Drops) > 0 {
		if storeErr := e.runs.AddDrops(run.ID(), result.Drops); storeErr != nil {
			logger.Error("failed to record drops", "id", run.ID(), "error", storeErr)
		}
	}
	return err
}
