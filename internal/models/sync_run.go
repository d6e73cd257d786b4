package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/lfmx/internal/shared"
)

// SyncRun status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// Where a run was started from.
const (
	TriggerCLI    = "cli"
	TriggerHTTP   = "http"
	TriggerTUI    = "tui"
	TriggerManual = "manual"
)

// SyncCounts are the aggregate counters of a batch run.
type SyncCounts struct {
	UsersTotal       int `json:"users_total"`
	UsersSynced      int `json:"users_synced"`
	UsersFailed      int `json:"users_failed"`
	LocalSongs       int `json:"local_songs"`
	RemoteSongs      int `json:"remote_songs"`
	MatchedSongs     int `json:"matched_songs"`
	FavoritesUpdated int `json:"favorites_updated"`
}

// SyncRun is the persisted history entry for one batch sync.
type SyncRun struct {
	record
	triggeredBy  string
	status       string
	counts       SyncCounts
	errorMessage string
	startedAt    *time.Time
	completedAt  *time.Time
}

// NewSyncRun creates a running [SyncRun] started now.
func NewSyncRun(sequence int, triggeredBy string) *SyncRun {
	now := time.Now()
	return &SyncRun{
		record:      newRecord(sequence),
		triggeredBy: triggeredBy,
		status:      RunStatusRunning,
		startedAt:   &now,
	}
}

func (r *SyncRun) TriggeredBy() string       { return r.triggeredBy }
func (r *SyncRun) Status() string            { return r.status }
func (r *SyncRun) Counts() SyncCounts        { return r.counts }
func (r *SyncRun) ErrorMessage() string      { return r.errorMessage }
func (r *SyncRun) StartedAt() *time.Time     { return r.startedAt }
func (r *SyncRun) CompletedAt() *time.Time   { return r.completedAt }
func (r *SyncRun) SetStatus(s string)        { r.status = s }
func (r *SyncRun) SetCounts(c SyncCounts)    { r.counts = c }
func (r *SyncRun) SetErrorMessage(m string)  { r.errorMessage = m }
func (r *SyncRun) SetStartedAt(t *time.Time) { r.startedAt = t }

func (r *SyncRun) SetCompletedAt(t *time.Time) { r.completedAt = t }

// Finish moves the run to a terminal status and stamps the completion time.
func (r *SyncRun) Finish(status string, counts SyncCounts, err error) {
	now := time.Now()
	r.status = status
	r.counts = counts
	r.completedAt = &now
	if err != nil {
		r.errorMessage = err.Error()
	}
}

// Duration returns the elapsed time of a finished run, or zero.
func (r *SyncRun) Duration() time.Duration {
	if r.startedAt == nil || r.completedAt == nil {
		return 0
	}
	return r.completedAt.Sub(*r.startedAt)
}

// Validate checks if the run's data is valid.
func (r *SyncRun) Validate() error {
	switch r.status {
	case RunStatusRunning, RunStatusCompleted, RunStatusCancelled, RunStatusFailed:
	default:
		return fmt.Errorf("%w: unknown run status %q", shared.ErrInvalidInput, r.status)
	}
	if r.triggeredBy == "" {
		return fmt.Errorf("%w: run trigger is required", shared.ErrInvalidInput)
	}
	if r.counts.UsersSynced+r.counts.UsersFailed > r.counts.UsersTotal {
		return fmt.Errorf("%w: more users processed than selected", shared.ErrInvalidInput)
	}
	return nil
}
