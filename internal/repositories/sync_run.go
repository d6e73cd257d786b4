package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

const syncRunColumns = `
	id, sequence, triggered_by, status, users_total, users_synced, users_failed,
	local_songs, remote_songs, matched_songs, favorites_updated, error_message,
	started_at, completed_at, created_at, updated_at, deleted_at
`

// SyncRunRepository implements models.Repository[*models.SyncRun] for batch sync history.
//
// It also records runs for the batch controller (tasks.RunRecorder).
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	return r.create(context.Background(), run)
}

// StartRun creates and stores a running [models.SyncRun].
func (r *SyncRunRepository) StartRun(ctx context.Context, trigger string) (*models.SyncRun, error) {
	run := models.NewSyncRun(0, trigger)
	if err := r.create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun stores the final status and counts of a run.
func (r *SyncRunRepository) FinishRun(ctx context.Context, run *models.SyncRun) error {
	return r.update(ctx, run)
}

func (r *SyncRunRepository) create(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	query := `INSERT INTO sync_runs (` + syncRunColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	c := run.Counts()
	_, err = r.db.ExecContext(ctx, query,
		run.ID(),
		sequence,
		run.TriggeredBy(),
		run.Status(),
		c.UsersTotal,
		c.UsersSynced,
		c.UsersFailed,
		c.LocalSongs,
		c.RemoteSongs,
		c.MatchedSongs,
		c.FavoritesUpdated,
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanSyncRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// Latest returns the most recent run, or [shared.ErrRunNotFound] when none was recorded.
func (r *SyncRunRepository) Latest() (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`

	run, err := scanSyncRun(r.db.QueryRow(query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	return run, err
}

// Update modifies an existing run in the database
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	return r.update(context.Background(), run)
}

func (r *SyncRunRepository) update(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE sync_runs
		SET status = ?, users_total = ?, users_synced = ?, users_failed = ?,
			local_songs = ?, remote_songs = ?, matched_songs = ?, favorites_updated = ?,
			error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	c := run.Counts()
	result, err := r.db.ExecContext(ctx, query,
		run.Status(),
		c.UsersTotal,
		c.UsersSynced,
		c.UsersFailed,
		c.LocalSongs,
		c.RemoteSongs,
		c.MatchedSongs,
		c.FavoritesUpdated,
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	return expectRow(result, shared.ErrRunNotFound, run.ID())
}

// Delete soft-deletes a run by ID
func (r *SyncRunRepository) Delete(id string) error {
	query := `
		UPDATE sync_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	return expectRow(result, shared.ErrRunNotFound, id)
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs
//
// Criteria: "status" (string), "triggered_by" (string), "limit" (int).
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if trigger, ok := criteria["triggered_by"].(string); ok && trigger != "" {
		query += " AND triggered_by = ?"
		args = append(args, trigger)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
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

// scanSyncRun scans a [sql.Row] or the current row of [sql.Rows] into a [models.SyncRun]
func scanSyncRun(row rowScanner) (*models.SyncRun, error) {
	var (
		id           string
		sequence     int
		triggeredBy  string
		status       string
		c            models.SyncCounts
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &triggeredBy, &status, &c.UsersTotal, &c.UsersSynced, &c.UsersFailed,
		&c.LocalSongs, &c.RemoteSongs, &c.MatchedSongs, &c.FavoritesUpdated, &errorMessage,
		&startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run := models.NewSyncRun(sequence, triggeredBy)
	run.SetID(id)
	run.SetStatus(status)
	run.SetCounts(c)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.SetStartedAt(nil)

	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
