package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
)

const runColumns = `
	id, sequence, mode, status, identities, rows_enriched, rows_dropped,
	teams_synced, teams_failed, snapshot_path, error_message, started_at,
	completed_at, created_at, updated_at, deleted_at`

var _ models.Repository[*models.Run] = (*RunRepository)(nil)

// RunRepository implements models.Repository[*models.Run] for pipeline run history.
//
// Handles run CRUD with soft delete and the per-run list of dropped identities.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.Mode,
		run.Status,
		run.Identities,
		run.RowsEnriched,
		run.RowsDropped,
		run.TeamsSynced,
		run.TeamsFailed,
		nullString(run.SnapshotPath),
		nullString(run.ErrorMessage),
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// Latest returns the most recent run
func (r *RunRepository) Latest() (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`
	return r.scan(r.db.QueryRow(query))
}

// Update writes the run's status and counters
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET status = ?, identities = ?, rows_enriched = ?, rows_dropped = ?,
			teams_synced = ?, teams_failed = ?, snapshot_path = ?, error_message = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.Status,
		run.Identities,
		run.RowsEnriched,
		run.RowsDropped,
		run.TeamsSynced,
		run.TeamsFailed,
		nullString(run.SnapshotPath),
		nullString(run.ErrorMessage),
		run.CompletedAt,
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return expectAffected(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return expectAffected(result, id)
}

// List retrieves runs matching the given criteria ("status", "mode", "limit"), newest first
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if mode, ok := criteria["mode"].(string); ok && mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// AddDrops records the identities a run dropped
func (r *RunRepository) AddDrops(runID string, drops []models.Drop) error {
	if len(drops) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_drops (run_id, account_uid, provider_uuid, team_name, stage, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare drop insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, d := range drops {
		_, err := stmt.Exec(runID, d.Identity.AccountUID, d.Identity.ProviderUUID, d.Identity.TeamName, d.Stage, d.Reason, now)
		if err != nil {
			return fmt.Errorf("failed to insert drop for %s: %w", d.Identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit drops: %w", err)
	}
	return nil
}

// Drops returns the identities dropped by a run in insertion order
func (r *RunRepository) Drops(runID string) ([]models.Drop, error) {
	rows, err := r.db.Query(`
		SELECT account_uid, provider_uuid, team_name, stage, reason
		FROM run_drops
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drops: %w", err)
	}
	defer rows.Close()

	var drops []models.Drop
	for rows.Next() {
		var d models.Drop
		if err := rows.Scan(&d.Identity.AccountUID, &d.Identity.ProviderUUID, &d.Identity.TeamName, &d.Stage, &d.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan drop: %w", err)
		}
		drops = append(drops, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return drops, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scan reads one run from a [sql.Row] or [sql.Rows]
func (r *RunRepository) scan(row rowScanner) (*models.Run, error) {
	var (
		id           string
		sequence     int
		mode         string
		status       string
		snapshotPath sql.NullString
		errorMessage sql.NullString
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
		run          = &models.Run{}
	)

	err := row.Scan(
		&id, &sequence, &mode, &status, &run.Identities, &run.RowsEnriched, &run.RowsDropped,
		&run.TeamsSynced, &run.TeamsFailed, &snapshotPath, &errorMessage, &run.StartedAt,
		&completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %w", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.Mode = models.RunMode(mode)
	run.Status = models.RunStatus(status)
	run.SnapshotPath = snapshotPath.String
	run.ErrorMessage = errorMessage.String

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func expectAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found or already deleted: %s: %w", id, shared.ErrRecordNotFound)
	}
	return nil
}
