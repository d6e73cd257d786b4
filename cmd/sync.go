package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/lfmx/internal/formatter"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun imports Last.fm history for every linked user, or for the users named with --user.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.controller(models.TriggerCLI)
	if err != nil {
		return err
	}

	users, err := r.selectUsers(cmd.StringSlice("user"))
	if err != nil {
		return err
	}

	var format formatter.Format
	writeReport := cmd.IsSet("report") || cmd.IsSet("report-dir")
	if writeReport {
		name := cmd.String("report")
		if name == "" {
			name = r.config.Sync.ReportFormat
		}
		if format, err = formatter.ParseFormat(name); err != nil {
			return err
		}
	}

	quiet := cmd.Bool("json")
	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			if quiet {
				continue
			}
			r.printProgress(update)
		}
	}()

	result, runErr := controller.RunBatch(ctx, users, progressCh)
	close(progressCh)
	<-printed

	if result == nil {
		return runErr
	}

	if writeReport {
		dir := cmd.String("report-dir")
		if dir == "" {
			dir = r.config.Sync.ReportDir
		}
		path, err := formatter.WriteReport(result, dir, format)
		if err != nil {
			r.logger.Error("failed to write report", "error", err)
		} else {
			r.logger.Info("report written", "path", path)
		}
	}

	if quiet {
		if err := r.writeJSON(formatter.NewReport(result), cmd.Bool("pretty")); err != nil {
			return err
		}
		return runErr
	}

	if result.Eligible == 0 {
		r.writePlain("No users with a Last.fm session, link one with `lfmx auth login`\n")
		return runErr
	}

	summary, err := formatter.ExportToText(result)
	if err != nil {
		return err
	}
	r.writePlain("\n")
	r.writePlainHeader("Sync Complete")
	if _, err := r.output.Write(summary); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return runErr
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.StartBatch:
		r.writePlain("🔄 %s\n", update.Message)
	case tasks.StartUser:
		r.writePlain("\n👤 %s\n", update.Message)
	case tasks.FetchLoved, tasks.ListArtists:
		r.writePlain("   %s\n", update.Message)
	case tasks.FetchPages:
		r.logger.Debug(update.Message, "percent", fmt.Sprintf("%.1f", update.Percent))
	case tasks.FinishUser:
		r.writePlain("   ✓ %s (%.0f%%)\n", update.Message, update.Percent)
	case tasks.FailUser:
		r.writePlain("   ✗ %s\n", update.Message)
	}
}

// selectUsers resolves --user references, or lists every linked user when none are given.
func (r *Runner) selectUsers(refs []string) ([]*models.User, error) {
	if len(refs) == 0 {
		return r.users.List(map[string]any{"linked": true})
	}

	users := make([]*models.User, 0, len(refs))
	for _, ref := range refs {
		user, err := r.users.Find(ref)
		if err != nil {
			return nil, err
		}
		if !user.CanSync() {
			r.logger.Warn("user has no Last.fm session, skipping", "user", user.Name())
		}
		users = append(users, user)
	}
	return users, nil
}

// runView is the JSON shape of a stored sync run.
type runView struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	TriggeredBy string            `json:"triggered_by"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Duration    string            `json:"duration,omitempty"`
	Counts      models.SyncCounts `json:"counts"`
	Error       string            `json:"error,omitempty"`
}

func newRunView(run *models.SyncRun) runView {
	v := runView{
		ID:          run.ID(),
		Status:      run.Status(),
		TriggeredBy: run.TriggeredBy(),
		StartedAt:   run.StartedAt(),
		CompletedAt: run.CompletedAt(),
		Counts:      run.Counts(),
		Error:       run.ErrorMessage(),
	}
	if d := run.Duration(); d > 0 {
		v.Duration = d.Round(time.Millisecond).String()
	}
	return v
}

// SyncStatus prints the most recent sync run.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	run, err := r.runs.Latest()
	if errors.Is(err, shared.ErrRunNotFound) {
		return r.writePlain("No sync runs yet\n")
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newRunView(run), cmd.Bool("pretty"))
	}

	v := newRunView(run)
	r.writePlainHeader("Last Sync")
	r.writePlain("ID: %s\n", v.ID)
	r.writePlain("Status: %s (%s)\n", v.Status, v.TriggeredBy)
	if v.StartedAt != nil {
		r.writePlain("Started: %s\n", v.StartedAt.Local().Format(time.DateTime))
	}
	if v.Duration != "" {
		r.writePlain("Duration: %s\n", v.Duration)
	}
	r.writePlain("Users: %d synced, %d failed, %d eligible\n", v.Counts.UsersSynced, v.Counts.UsersFailed, v.Counts.UsersTotal)
	r.writePlain("Songs: %d local, %d remote, %d matched\n", v.Counts.LocalSongs, v.Counts.RemoteSongs, v.Counts.MatchedSongs)
	r.writePlain("Favorites updated: %d\n", v.Counts.FavoritesUpdated)
	if v.Error != "" {
		r.writePlain("Error: %s\n", v.Error)
	}
	return nil
}

// SyncHistory lists stored runs, newest first.
func (r *Runner) SyncHistory(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	runs, err := r.runs.List(criteria)
	if err != nil {
		return err
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(views) == 0 {
		return r.writePlain("No sync runs yet\n")
	}

	r.writePlainHeader(fmt.Sprintf("Sync History (%d)", len(views)))
	for i, v := range views {
		started := "-"
		if v.StartedAt != nil {
			started = v.StartedAt.Local().Format(time.DateTime)
		}
		r.writePlain("%d. %s  %-9s %-6s %d/%d users, %d matched, %d favorites\n",
			i+1, started, v.Status, v.TriggeredBy, v.Counts.UsersSynced, v.Counts.UsersTotal, v.Counts.MatchedSongs, v.Counts.FavoritesUpdated)
	}
	return nil
}
