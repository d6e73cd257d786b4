package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

// SyncFlag marks that a batch run is active. Only one holder at a time.
type SyncFlag struct {
	syncing atomic.Bool
}

// DefaultSyncFlag is the process-wide flag shared by every [BatchController] that is not given its own.
var DefaultSyncFlag = &SyncFlag{}

// Acquire takes the flag. The returned release func clears it and is safe to call more than once.
func (f *SyncFlag) Acquire() (release func(), err error) {
	if !f.syncing.CompareAndSwap(false, true) {
		return nil, shared.ErrSyncInProgress
	}
	syncInProgress.Set(1)

	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			f.syncing.Store(false)
			syncInProgress.Set(0)
		}
	}, nil
}

// Syncing reports whether a batch run currently holds the flag.
func (f *SyncFlag) Syncing() bool { return f.syncing.Load() }

// BatchOpts contains the collaborators of a [BatchController].
type BatchOpts struct {
	Syncer   UserSyncer
	Flag     *SyncFlag   // defaults to DefaultSyncFlag
	Recorder RunRecorder // optional
	Trigger  string      // recorded with the run, default models.TriggerManual
	Logger   *log.Logger
}

// BatchController runs the reconciler for every eligible user, one after another.
type BatchController struct {
	syncer   UserSyncer
	flag     *SyncFlag
	recorder RunRecorder
	trigger  string
	logger   *log.Logger
}

// NewBatchController creates a [BatchController].
func NewBatchController(opts BatchOpts) *BatchController {
	if opts.Flag == nil {
		opts.Flag = DefaultSyncFlag
	}
	if opts.Trigger == "" {
		opts.Trigger = models.TriggerManual
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &BatchController{
		syncer:   opts.Syncer,
		flag:     opts.Flag,
		recorder: opts.Recorder,
		trigger:  opts.Trigger,
		logger:   opts.Logger,
	}
}

// Flag returns the flag the controller acquires.
func (b *BatchController) Flag() *SyncFlag { return b.flag }

// RunBatch syncs every user with a linked Last.fm session.
//
// Without eligible users it returns an empty completed result and never touches the flag.
// A failed user is logged and counted and the batch moves on. Cancellation stops the batch and is returned
// along with the partial result.
func (b *BatchController) RunBatch(ctx context.Context, users []*models.User, progress chan<- ProgressUpdate) (*BatchResult, error) {
	if b.syncer == nil {
		return nil, fmt.Errorf("%w: reconciler not initialized", shared.ErrServiceUnavailable)
	}

	eligible := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u != nil && u.CanSync() {
			eligible = append(eligible, u)
		}
	}

	result := &BatchResult{
		Status:    models.RunStatusCompleted,
		Trigger:   b.trigger,
		Eligible:  len(eligible),
		Users:     make([]UserResult, 0, len(eligible)),
		StartedAt: time.Now(),
	}

	if len(eligible) == 0 {
		b.logger.Info("No users with a Last.fm session found")
		result.CompletedAt = time.Now()
		return result, nil
	}

	release, err := b.flag.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	run := b.startRun(ctx)
	if run != nil {
		result.RunID = run.ID()
	}

	sendProgress(progress, startBatchUpdate(len(eligible)))

	var batchErr error
	for i, user := range eligible {
		if ctx.Err() != nil {
			batchErr = cancelled(ctx)
			break
		}

		span := userSpan(i, len(eligible))
		sendProgress(progress, startUserUpdate(i+1, len(eligible), span, user))

		res, err := b.syncer.SyncUser(ctx, user, span, progress)
		if err != nil && (IsCancelled(err) || ctx.Err() != nil) {
			userSyncsTotal.WithLabelValues("cancelled").Inc()
			result.Users = append(result.Users, UserResult{User: user.Name(), Result: res, Err: err})
			batchErr = err
			break
		}

		result.Users = append(result.Users, UserResult{User: user.Name(), Result: res, Err: err})
		if err != nil {
			userSyncsTotal.WithLabelValues("failed").Inc()
			b.logger.Error("user sync failed", "user", user.Name(), "error", err)
			sendProgress(progress, failUserUpdate(i+1, len(eligible), span, user, err))
			continue
		}

		userSyncsTotal.WithLabelValues("ok").Inc()
		sendProgress(progress, finishUserUpdate(i+1, len(eligible), span, user, res))
	}

	result.CompletedAt = time.Now()
	if batchErr != nil {
		result.Status = models.RunStatusCancelled
		if !errors.Is(batchErr, shared.ErrCancelled) {
			batchErr = fmt.Errorf("%w: %w", shared.ErrCancelled, batchErr)
		}
	}
	batchRunsTotal.WithLabelValues(result.Status).Inc()

	b.finishRun(ctx, run, result, batchErr)

	counts := result.Counts()
	b.logger.Info("Finished Last.fm import",
		"status", result.Status,
		"users", fmt.Sprintf("%d/%d", counts.UsersSynced, counts.UsersTotal),
		"failed", counts.UsersFailed,
		"local", counts.LocalSongs,
		"remote", counts.RemoteSongs,
		"matched", counts.MatchedSongs,
		"match_rate", fmt.Sprintf("%.1f%%", result.MatchRate()),
		"duration", result.Duration().Round(time.Millisecond),
	)

	sendProgress(progress, finishBatchUpdate(result))
	return result, batchErr
}

func (b *BatchController) startRun(ctx context.Context) *models.SyncRun {
	if b.recorder == nil {
		return nil
	}
	run, err := b.recorder.StartRun(ctx, b.trigger)
	if err != nil {
		b.logger.Warn("failed to record sync run", "error", err)
		return nil
	}
	return run
}

// finishRun records the outcome even when ctx is already cancelled.
func (b *BatchController) finishRun(ctx context.Context, run *models.SyncRun, result *BatchResult, err error) {
	if run == nil {
		return
	}
	run.Finish(result.Status, result.Counts(), err)
	if err := b.recorder.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		b.logger.Warn("failed to record sync run", "run", run.ID(), "error", err)
	}
}
