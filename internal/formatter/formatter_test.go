package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
	th "github.com/desertthunder/lfmx/internal/testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"", FormatJSON},
		{"JSON", FormatJSON},
		{"csv", FormatCSV},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{" text ", FormatText},
		{"txt", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if err != nil {
				t.Fatalf("ParseFormat(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestNewReport(t *testing.T) {
	report := NewReport(th.BatchResult())

	if report.Counts.UsersSynced != 1 || report.Counts.UsersFailed != 1 || report.Counts.UsersTotal != 2 {
		t.Errorf("unexpected counts %+v", report.Counts)
	}
	if report.MatchRate != 60 {
		t.Errorf("expected match rate 60, got %.1f", report.MatchRate)
	}
	if report.Duration != "1.5s" {
		t.Errorf("expected duration 1.5s, got %s", report.Duration)
	}
	if len(report.Users) != 2 || report.Users[1].Error == "" {
		t.Errorf("expected bob's error to be carried, got %+v", report.Users)
	}
}

func TestExporters(t *testing.T) {
	result := th.BatchResult()

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(result)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{`"status": "completed"`, `"matched_songs": 6`, `"user": "bob"`, `"error": "sync bob`} {
			if !strings.Contains(output, want) {
				t.Errorf("JSON missing %s, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(result)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "User,Local,Remote,Matched,Favorites,Loved,ArtistErrors,MatchRate,Error" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if lines[1] != "alice,10,8,6,2,3,0,60.0," {
			t.Errorf("unexpected alice row: %s", lines[1])
		}
		if !strings.HasPrefix(lines[2], "bob,0,0,0,0,0,0,0.0,") {
			t.Errorf("unexpected bob row: %s", lines[2])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(result)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# Last.fm sync") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "**Users**: 1 synced, 1 failed, 2 eligible") {
			t.Errorf("Markdown missing user summary, got: %s", output)
		}
		if !strings.Contains(output, "| alice | 10 | 8 | 6 | 60.0% | 2 | ok |") {
			t.Errorf("Markdown missing alice row, got: %s", output)
		}
		if !strings.Contains(output, "| bob |") || !strings.Contains(output, "service unavailable") {
			t.Errorf("Markdown missing bob's failure")
		}
	})

	t.Run("ExportToMarkdown without users", func(t *testing.T) {
		empty := &tasks.BatchResult{Status: models.RunStatusCompleted}
		data, err := ExportToMarkdown(empty)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		if !strings.Contains(string(data), "No users were synced.") {
			t.Errorf("expected empty notice, got: %s", data)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(result)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Sync completed in 1.5s") {
			t.Errorf("Text missing header, got: %s", output)
		}
		if !strings.Contains(output, "1. alice: 6/10 matched (60.0%), 2 favorites") {
			t.Errorf("Text missing alice, got: %s", output)
		}
		if !strings.Contains(output, "2. bob: failed:") {
			t.Errorf("Text missing bob's failure")
		}
	})

	t.Run("Export unknown format", func(t *testing.T) {
		if _, err := Export(result, Format("xml")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestWriteReport(t *testing.T) {
	result := th.BatchResult()

	t.Run("ReportFilename", func(t *testing.T) {
		if got := ReportFilename(result, FormatCSV); got != "sync_20240301-120000_3f2c9a7e.csv" {
			t.Errorf("unexpected filename %s", got)
		}

		anonymous := &tasks.BatchResult{StartedAt: result.StartedAt}
		if got := ReportFilename(anonymous, FormatJSON); got != "sync_20240301-120000.json" {
			t.Errorf("unexpected filename %s", got)
		}
	})

	t.Run("WithDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "reports")

		path, err := WriteReport(result, dir, FormatMarkdown)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}

		th.AssertDirExists(t, dir)
		th.AssertFileExists(t, path)
		if filepath.Dir(path) != dir {
			t.Errorf("expected report in %s, got %s", dir, path)
		}
		if content := th.MustReadFile(t, path); !strings.Contains(content, "| alice |") {
			t.Errorf("report missing content")
		}
	})

	t.Run("WithDefaultDirectory", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		path, err := WriteReport(result, "", FormatText)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if path != "sync_20240301-120000_3f2c9a7e.txt" {
			t.Errorf("unexpected path %s", path)
		}
		th.AssertFileExists(t, path)
	})
}
