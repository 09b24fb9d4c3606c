// Package server provides HTTP routing, middleware and the JSON API over drafts, clips and the chord transposer.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Recover], [Logging] and [RateLimit] are provided; the rate limiter keeps one token bucket per client address.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally, registering "METHOD /path" patterns.
//
// # API
//
// [API] implements [Handler] and owns everything under /api/:
//
//	GET  /api/keys
//	POST /api/transpose            {"from":"G","to":"D","text":"..."} or {"semitones":2,"text":"..."}
//	GET  /api/drafts               ?key=G&title=...
//	GET  /api/drafts/{id}          id or sequence number
//	GET  /api/drafts/{id}/clips
//	POST /api/drafts/{id}/transpose {"to":"D"}
//
// Errors are returned as {"error": "..."} with a 400, 404, 429 or 500 status.
//
// # Lifecycle
//
// [Listen] binds the address up front so callers can read the chosen port before [Server.Serve] blocks.
// Serve shuts down gracefully when its context ends.
package server
