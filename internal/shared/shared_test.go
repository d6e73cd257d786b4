package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tc := []struct {
		in   string
		want string
	}{
		{"Clocks", "clocks"},
		{"  Fix   You ", "fix you"},
		{"Don't Panic", "dont panic"},
		{"Viva la Vida / Death", "viva la vida death"},
		{"Speed of Sound (Live)", "speed of sound live"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsLike(t *testing.T) {
	tc := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "case folded", a: "Clocks", b: "clocks", want: true},
		{name: "whitespace tolerant", a: " Yellow ", b: "yellow", want: true},
		{name: "apostrophe dropped", a: "Don't Panic", b: "Dont Panic", want: true},
		{name: "punctuation as space", a: "Viva la Vida-Death", b: "viva la vida death", want: true},
		{name: "short names need exact match", a: "Yellow", b: "Mellow", want: false},
		{name: "long name one deletion", a: "The Scientist", b: "The Scientst", want: true},
		{name: "long name one substitution rejected", a: "The Scientist", b: "The Scientisd", want: false},
		{name: "different songs", a: "Clocks", b: "Yellow", want: false},
		{name: "empty never matches", a: "", b: "", want: false},
		{name: "punctuation only never matches", a: "...", b: "...", want: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLike(tt.a, tt.b); got != tt.want {
				t.Errorf("IsLike(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := IsLike(tt.b, tt.a); got != tt.want {
				t.Errorf("IsLike(%q, %q) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("NewLogger writes to given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello", "user", "alice")

		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("expected log output to contain message, got %q", buf.String())
		}
		if !strings.Contains(buf.String(), "user=alice") {
			t.Errorf("expected log output to contain key/value pair, got %q", buf.String())
		}
	})

	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		child := WithLogger(NewLogger(&buf), "artist", "Coldplay")
		child.Info("fetched")

		if !strings.Contains(buf.String(), "artist=Coldplay") {
			t.Errorf("expected child logger field, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger creates directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "lfmx.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("failed to create file logger: %v", err)
		}
		logger.Info("written")
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		tc := map[string]log.Level{
			"debug":  log.DebugLevel,
			" WARN ": log.WarnLevel,
			"error":  log.ErrorLevel,
			"bogus":  log.InfoLevel,
			"":       log.InfoLevel,
			"info":   log.InfoLevel,
		}
		for in, want := range tc {
			if got := ParseLogLevel(in); got != want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
			}
		}
	})
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"matched": 2}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(compact) != `{"matched":2}` {
		t.Errorf("unexpected compact JSON: %s", compact)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(pretty), "\n  \"matched\": 2") {
		t.Errorf("unexpected pretty JSON: %s", pretty)
	}
}
