// Package server implements the bundle preview server behind
// "stagehand serve". It serves a built frontend bundle directly from the
// host, reproducing the behavior of the runtime container: single-page
// app fallback to index.html, permissive CORS on every response, and a
// health endpoint.
//
// Assets are cached in memory and invalidated by a modification-time
// poller so a rebuilt bundle shows up without restarting the server.
// Prometheus metrics are exposed on an optional separate port.
package server
