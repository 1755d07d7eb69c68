// Package api defines wire-format types and read services for the HTTP
// command surface. It composes catalog records, controller snapshots, and
// rendered overlays into payloads the UI layer can draw without reaching
// into playback internals.
//
// # Key Types
//
// PlayerResponse: controller snapshot plus the subtitle frame and the
// annotations visible on each video at the current playhead.
//
// StageResponse: a stage with its ordered processes and aggregate time saved.
//
// LogStreamResponse: structured log payloads for live tailing.
//
// # Services
//
// CatalogService: read-mostly catalog access returning API payloads, plus
// subtitle style persistence in the settings table.
//
// # Design Notes
//
// Payloads reuse the snake_case JSON tags of the underlying models so the UI
// sees one naming scheme. Timestamps are RFC3339 with milliseconds.
package api
