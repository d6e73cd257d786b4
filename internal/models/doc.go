// Package models defines domain entities and persistence interfaces for the lfmx Last.fm import service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs exchanged between the catalog, Last.fm and the reconciler
//   - [Artist] : Local catalog artist with optional MusicBrainz id
//   - [Track] : Local catalog track
//   - [RemoteTrack] : Track reported by Last.fm (artist history or loved list)
//   - [PageMetadata] : Pagination attributes of a Last.fm listing
//   - [UserData] : Per-user metadata about a track (favorite flag, play count)
//   - [RemoteUser] : Linked Last.fm account with session key and [SyncOptions]
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Catalog users, optionally linked to Last.fm
//   - [SyncRun] : Batch sync history with aggregate counters
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
