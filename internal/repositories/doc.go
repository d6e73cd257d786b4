// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Users and sync runs support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : Catalog users with their linked Last.fm account and sync options
//   - [CatalogRepository] : Local artists and tracks; the reconciler's catalog reader and the JSON catalog import
//   - [UserDataRepository] : Per-user track metadata (favorite flag, play count) upserted by (user, track)
//   - [SyncRunRepository] : Batch sync history with aggregate counters; records runs for the batch controller
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, run #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
