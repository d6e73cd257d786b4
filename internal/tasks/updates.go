package tasks

import (
	"fmt"

	"github.com/desertthunder/lfmx/internal/models"
)

// ProgressUpdate represents a progress event during a batch sync.
//
// Used to send real-time updates to the CLI, TUI or HTTP status endpoint.
type ProgressUpdate struct {
	Phase   Phase   // Operation phase
	Step    int     // Current step number within phase
	Total   int     // Total steps in this phase
	Percent float64 // Overall batch completion, 0..100
	Message string  // Human-readable message for display
	Data    any     // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	StartBatch Phase = iota
	StartUser
	FetchLoved
	ListArtists
	FetchPages
	FinishUser
	FailUser
	FinishBatch
)

func (p Phase) String() string {
	switch p {
	case StartBatch:
		return "start_batch"
	case StartUser:
		return "start_user"
	case FetchLoved:
		return "fetch_loved"
	case ListArtists:
		return "list_artists"
	case FetchPages:
		return "fetch_pages"
	case FinishUser:
		return "finish_user"
	case FailUser:
		return "fail_user"
	case FinishBatch:
		return "finish_batch"
	default:
		return ""
	}
}

// ProgressSpan is the share of the overall batch assigned to one user, as fractions in [0, 1].
type ProgressSpan struct {
	Offset float64
	Max    float64
}

// FullSpan covers the whole range, for a user synced on its own.
var FullSpan = ProgressSpan{Offset: 0, Max: 1}

// Percent maps a fraction of the user's own work onto the batch range.
func (s ProgressSpan) Percent(fraction float64) float64 {
	fraction = min(max(fraction, 0), 1)
	return 100 * (s.Offset + fraction*(s.Max-s.Offset))
}

// userSpan returns the slice of user i out of n.
func userSpan(i, n int) ProgressSpan {
	return ProgressSpan{Offset: float64(i) / float64(n), Max: float64(i+1) / float64(n)}
}

// artistFraction is the user's completed fraction while on page of totalPages for the artist at index.
func artistFraction(index, count int, meta models.PageMetadata) float64 {
	if count <= 0 {
		return 1
	}
	pageFraction := 1.0
	if meta.TotalPages > 0 {
		pageFraction = float64(min(meta.Page, meta.TotalPages)) / float64(meta.TotalPages)
	}
	return (float64(index) + pageFraction) / float64(count)
}

func startBatchUpdate(users int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StartBatch,
		Total:   users,
		Message: fmt.Sprintf("Syncing %d users with Last.fm...", users),
	}
}

func startUserUpdate(step, total int, span ProgressSpan, user *models.User) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StartUser,
		Step:    step,
		Total:   total,
		Percent: span.Percent(0),
		Message: fmt.Sprintf("[%d/%d] %s", step, total, user),
	}
}

func fetchLovedUpdate(span ProgressSpan, username string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLoved,
		Percent: span.Percent(0),
		Message: fmt.Sprintf("Fetching loved tracks for %s...", username),
	}
}

func listArtistsUpdate(span ProgressSpan, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListArtists,
		Total:   count,
		Percent: span.Percent(0),
		Message: fmt.Sprintf("Found %d local artists", count),
	}
}

func fetchPageUpdate(step, total int, span ProgressSpan, artist models.Artist, meta models.PageMetadata) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPages,
		Step:    step,
		Total:   total,
		Percent: span.Percent(artistFraction(step-1, total, meta)),
		Message: fmt.Sprintf("[%d/%d] %s (page %d/%d)", step, total, artist.Name, meta.Page, meta.TotalPages),
		Data:    meta,
	}
}

func finishUserUpdate(step, total int, span ProgressSpan, user *models.User, res SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FinishUser,
		Step:    step,
		Total:   total,
		Percent: span.Percent(1),
		Message: fmt.Sprintf("[%d/%d] ✓ %s: %d/%d matched", step, total, user.Name(), res.MatchedSongs, res.LocalSongs),
		Data:    res,
	}
}

func failUserUpdate(step, total int, span ProgressSpan, user *models.User, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FailUser,
		Step:    step,
		Total:   total,
		Percent: span.Percent(1),
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, user.Name(), err),
	}
}

func finishBatchUpdate(result *BatchResult) ProgressUpdate {
	counts := result.Counts()
	return ProgressUpdate{
		Phase:   FinishBatch,
		Step:    counts.UsersSynced + counts.UsersFailed,
		Total:   counts.UsersTotal,
		Percent: 100,
		Message: fmt.Sprintf("Sync %s: %d matched of %d local songs", result.Status, counts.MatchedSongs, counts.LocalSongs),
		Data:    result,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
