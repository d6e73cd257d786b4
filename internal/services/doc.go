// Package services implements the Last.fm web API client used to read listening history and loved tracks.
//
// # Service Interface
//
// [Service] is the surface the rest of the module depends on. [LastfmService] is the only implementation;
// tests substitute hand-written fakes.
//
// # Transport
//
// Every request carries api_key, method and format=json. Write methods and authenticated calls are signed with
// api_sig, the md5 of all parameters sorted by name followed by the shared secret.
//
// Requests are paced by a token bucket ([rate.Limiter]) and guarded by a circuit breaker (sony/gobreaker).
// Only transport failures and temporary Last.fm error codes trip the breaker; an unknown user or a bad parameter
// is the caller's problem, not the service's.
//
// Last.fm reports errors in the body, sometimes with HTTP 200. Such payloads are returned as [*RemoteError],
// which matches shared.ErrRemote under errors.Is.
//
// # Response quirks
//
// Numbers arrive as strings, single-element lists arrive as objects, and the artist name lives under "name" or
// "#text" depending on the method. The types in lastfm_types.go absorb these differences.
package services
