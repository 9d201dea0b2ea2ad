// Package httpserver is the request front door.
//
// Every request passes the pipeline stages in a fixed order:
//
//	recover -> forwarded -> https -> authenticate -> authorize -> log ->
//	compress -> ratelimit -> router
//
// The router serves the utility endpoints (/healthz, /readyz, /version and
// optionally /metrics), then the asset bundle, then the not-found response.
// Only the recover stage converts faults into responses.
//
// SelectListener picks HTTPS when a certificate pair loads and falls back
// to plaintext HTTP otherwise. Server binds the selected listener plus the
// optional redirect and HTTP/3 listeners.
package httpserver
