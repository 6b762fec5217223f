// Package httpapi provides the HTTP handlers and middleware for the
// roomboard persistence service.
//
// The router exposes the following endpoints:
//   - GET /api/meetings: full meeting list; the current list version is
//     surfaced via the `X-List-Version` header.
//   - GET /api/meetings/{id}: a single meeting, 404 when absent.
//   - POST /api/meetings: stores a meeting, assigning id and creation
//     timestamp when omitted. Responds 201 with the stored record, or 409
//     when the optional server-side overlap check rejects it.
//   - PUT /api/meetings/{id}: merges a partial meeting into the stored
//     record. Responds {"success",...,"meeting":{...}}, 404 when absent.
//   - DELETE /api/meetings/{id}: removes and returns the meeting, 404 when
//     absent.
//   - POST /api/meetings/batch: replaces the whole list. 400 when the body is
//     not an array; an optional `If-Match-Version` header makes the replace
//     conditional on the list version, 409 on mismatch.
//   - POST /api/backgrounds/upload, GET /api/backgrounds,
//     GET /api/backgrounds/{filename}, DELETE /api/backgrounds/{type}:
//     background image management.
//   - GET /health: liveness probe.
//
// Every /api response carries no-store cache headers; unknown query keys
// (cache busters in particular) are ignored.
package httpapi
