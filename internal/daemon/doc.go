// Package daemon coordinates the long-running kaizen server process.
//
// It wires configuration, the catalog store, the playback controller, and the
// HTTP command surface into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon drives the controller's tick loop,
// loads stages into it, and serves snapshots, overlays, logs, local media,
// and metrics to the UI layer.
//
// Keep orchestration logic here: playback semantics live in the playback
// package while the daemon focuses on startup, shutdown, and transport.
package daemon
