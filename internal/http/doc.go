// Package http provides HTTP handlers and middleware for the roster API.
//
// Every JSON response carries "ok". Failures add "error" (a Japanese message),
// an optional "errorCode" and, for validation failures, per-field "errors".
//
// The router exposes the following endpoints:
//   - POST /schedule/cell: applies toggle, add, remove, replace2 or swap to one
//     worker × day cell. Body: {"workerId","day","action","siteId"|"siteName"}.
//     Response: {"ok","action","changed","reason","toggled","replaced","entryId",
//     "before","after"}. POST /schedule/assign is the toggle-only alias.
//   - POST /schedule/cell/set: replaces a cell with up to two labels. Body:
//     {"workerId","day","slot0","slot1"}.
//   - GET /schedule/cell/snapshot?workerId=&day=: {"ok","day","slot0","slot1"}.
//   - POST /schedule/auto-fill: fills a month with a site's repeat pace. Body:
//     {"workerId","siteId","month"|"days"}. Response: {"ok","created","skipped",
//     "full","reason"}.
//   - GET /schedule/week?weekStart=, /schedule/month?month=, /schedule/year?year=:
//     calendar views. Omitted parameters select the current period.
//   - GET /schedule/sites?limit=: quick-input suggestions {"ok","names","sites"}.
//   - POST /history/sessions, GET|DELETE /history/sessions/{id},
//     PUT /history/sessions/{id}/scope, POST /history/sessions/{id}/undo|redo:
//     server-held undo/redo. Cell edits sent with the X-History-Session header
//     are recorded in that session.
//   - GET /sites, POST /sites, PUT /sites/{id}, PUT /sites/{id}/repeat-rule,
//     GET /sites/{id}/preview?month=, GET /sites/usage?month=: the site ledger.
//   - GET /workers, POST /workers: the worker directory.
//
// Ledger and directory mutations require the X-Admin-Token header when an
// admin token hash is configured. State-changing requests share one rate limit.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
