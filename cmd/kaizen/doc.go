// Package main hosts the kaizen CLI entrypoint and command graph.
//
// `kaizen serve` runs the playback server. The remaining commands either talk
// to that server over its HTTP API (player, status, logs) or work directly on
// the catalog database and speech cache (process, timing, narrate, subtitle).
package main
