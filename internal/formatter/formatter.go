// package formatter renders batch sync results as reports (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
)

// Format is a report output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat resolves a format name; "" defaults to [FormatJSON].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidInput, s)
}

// Report is the serializable form of a [tasks.BatchResult].
type Report struct {
	RunID       string            `json:"run_id,omitempty"`
	Status      string            `json:"status"`
	Trigger     string            `json:"trigger"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Duration    string            `json:"duration"`
	Counts      models.SyncCounts `json:"counts"`
	MatchRate   float64           `json:"match_rate"`
	Users       []UserRow         `json:"users"`
}

// UserRow is one user's line in a [Report].
type UserRow struct {
	User             string  `json:"user"`
	LocalSongs       int     `json:"local_songs"`
	RemoteSongs      int     `json:"remote_songs"`
	MatchedSongs     int     `json:"matched_songs"`
	FavoritesUpdated int     `json:"favorites_updated"`
	LovedTracks      int     `json:"loved_tracks"`
	ArtistErrors     int     `json:"artist_errors"`
	MatchRate        float64 `json:"match_rate"`
	Error            string  `json:"error,omitempty"`
}

// NewReport flattens a batch result.
func NewReport(result *tasks.BatchResult) Report {
	report := Report{
		RunID:       result.RunID,
		Status:      result.Status,
		Trigger:     result.Trigger,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		Duration:    result.Duration().Round(time.Millisecond).String(),
		Counts:      result.Counts(),
		MatchRate:   result.MatchRate(),
		Users:       make([]UserRow, 0, len(result.Users)),
	}

	for _, u := range result.Users {
		report.Users = append(report.Users, UserRow{
			User:             u.User,
			LocalSongs:       u.Result.LocalSongs,
			RemoteSongs:      u.Result.RemoteSongs,
			MatchedSongs:     u.Result.MatchedSongs,
			FavoritesUpdated: u.Result.FavoritesUpdated,
			LovedTracks:      u.Result.LovedTracks,
			ArtistErrors:     u.Result.ArtistErrors,
			MatchRate:        u.Result.MatchRate(),
			Error:            u.Error(),
		})
	}
	return report
}

// ExportToJSON renders the report as indented JSON
func ExportToJSON(result *tasks.BatchResult) ([]byte, error) {
	return shared.MarshalJSON(NewReport(result), true)
}

// ExportToCSV renders one row per user with columns: User, Local, Remote, Matched, Favorites, Loved, ArtistErrors, MatchRate, Error
func ExportToCSV(result *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"User", "Local", "Remote", "Matched", "Favorites", "Loved", "ArtistErrors", "MatchRate", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range NewReport(result).Users {
		record := []string{
			row.User,
			strconv.Itoa(row.LocalSongs),
			strconv.Itoa(row.RemoteSongs),
			strconv.Itoa(row.MatchedSongs),
			strconv.Itoa(row.FavoritesUpdated),
			strconv.Itoa(row.LovedTracks),
			strconv.Itoa(row.ArtistErrors),
			strconv.FormatFloat(row.MatchRate, 'f', 1, 64),
			row.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a summary followed by a per-user table
func ExportToMarkdown(result *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	report := NewReport(result)

	buf.WriteString("# Last.fm sync\n\n")
	if report.RunID != "" {
		buf.WriteString(fmt.Sprintf("**Run**: %s\n", report.RunID))
	}
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", report.Status))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", report.StartedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n", report.Duration))
	buf.WriteString(fmt.Sprintf("**Users**: %d synced, %d failed, %d eligible\n",
		report.Counts.UsersSynced, report.Counts.UsersFailed, report.Counts.UsersTotal))
	buf.WriteString(fmt.Sprintf("**Songs**: %d local, %d remote, %d matched (%.1f%%)\n",
		report.Counts.LocalSongs, report.Counts.RemoteSongs, report.Counts.MatchedSongs, report.MatchRate))
	buf.WriteString(fmt.Sprintf("**Favorites updated**: %d\n\n", report.Counts.FavoritesUpdated))

	if len(report.Users) == 0 {
		buf.WriteString("No users were synced.\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("## Users\n\n")
	buf.WriteString("| User | Local | Remote | Matched | Rate | Favorites | Result |\n")
	buf.WriteString("|------|------:|-------:|--------:|-----:|----------:|--------|\n")
	for _, row := range report.Users {
		outcome := "ok"
		if row.Error != "" {
			outcome = strings.ReplaceAll(row.Error, "|", `\|`)
		}
		buf.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.1f%% | %d | %s |\n",
			row.User, row.LocalSongs, row.RemoteSongs, row.MatchedSongs, row.MatchRate, row.FavoritesUpdated, outcome))
	}

	return buf.Bytes(), nil
}

// ExportToText renders the report as plain text
func ExportToText(result *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	report := NewReport(result)

	buf.WriteString(fmt.Sprintf("Sync %s in %s\n", report.Status, report.Duration))
	buf.WriteString(fmt.Sprintf("Users: %d/%d synced, %d failed\n",
		report.Counts.UsersSynced, report.Counts.UsersTotal, report.Counts.UsersFailed))
	buf.WriteString(fmt.Sprintf("Matched %d of %d local songs (%.1f%%), %d remote, %d favorites updated\n\n",
		report.Counts.MatchedSongs, report.Counts.LocalSongs, report.MatchRate, report.Counts.RemoteSongs,
		report.Counts.FavoritesUpdated))

	for i, row := range report.Users {
		if row.Error != "" {
			buf.WriteString(fmt.Sprintf("%d. %s: failed: %s\n", i+1, row.User, row.Error))
			continue
		}
		buf.WriteString(fmt.Sprintf("%d. %s: %d/%d matched (%.1f%%), %d favorites\n",
			i+1, row.User, row.MatchedSongs, row.LocalSongs, row.MatchRate, row.FavoritesUpdated))
	}

	return buf.Bytes(), nil
}

// Export renders result in the given format.
func Export(result *tasks.BatchResult, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(result)
	case FormatCSV:
		return ExportToCSV(result)
	case FormatMarkdown:
		return ExportToMarkdown(result)
	case FormatText:
		return ExportToText(result)
	}
	return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidInput, format)
}

// ReportFilename names a report after its start time and run.
//
// Defaults to sync_{20060102-150405}[_{run id prefix}].{format}
func ReportFilename(result *tasks.BatchResult, format Format) string {
	name := "sync_" + result.StartedAt.Format("20060102-150405")
	if result.RunID != "" {
		name += "_" + result.RunID[:min(8, len(result.RunID))]
	}
	return name + "." + string(format)
}

// WriteReport writes the rendered report into dir, creating it when needed, and returns the file path.
func WriteReport(result *tasks.BatchResult, dir string, format Format) (string, error) {
	data, err := Export(result, format)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, ReportFilename(result, format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}
