// Package server exposes the Last.fm login and batch sync over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Routes
//
//	POST /lastfm/login → exchange Last.fm credentials for a session key and link it to a local user
//	POST /sync         → start a batch sync in the background (409 while one is active)
//	GET  /sync/status  → sync flag, latest progress update and the last batch report
//	GET  /metrics      → Prometheus metrics
//
// Every route goes through [RequestID], [Logging] and [Metrics].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
