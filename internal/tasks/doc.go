// Package tasks reconciles a local music catalog with Last.fm listening data, reporting progress in real time.
//
// # Components
//
//  1. [PageFetcher] : One request per page of a Last.fm track listing
//     - Artist-scoped (user.getArtistTracks, 1000 per page) or whole library (library.getTracks, 200 per page)
//     - [Pager] walks pages in order and stops at the reported last page or the first empty page
//
//  2. [LovedIndex] : A user's loved tracks, fetched once per sync
//     - MBID lookup when both sides carry one, fuzzy name comparison otherwise
//
//  3. [Matcher] : Pairs a local track with the first remote track of the same artist whose name is alike
//     - The name rule is a [NamePredicate], shared.IsLike by default
//
//  4. [Reconciler] : Syncs one user
//     - Artists without a MusicBrainz id are skipped
//     - Remote tracks credited to another artist MBID are dropped before matching
//     - The favorite flag of every matched track is written to the [UserDataStore]
//     - One artist's fetch failure is logged and counted, never fatal
//
//  5. [BatchController] : Syncs every user with a Last.fm session, one at a time, while holding the [SyncFlag]
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// Each user owns an equal slice of the batch range. Within it, page fetches advance the percentage as
// (artist index + page/total pages) / artist count. Updates use select with default to prevent blocking.
//
// # Cancellation
//
// The context is checked before every artist and every page. A cancelled sync returns a [*SyncError] wrapping
// shared.ErrCancelled; user data written before that point stays.
package tasks
