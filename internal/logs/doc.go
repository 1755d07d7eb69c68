// Package logs reads server logs for the CLI: the /api/logs event stream
// when a server is reachable and the kaizen.log file otherwise.
//
// Tail supports negative offsets for "last N lines" and polls in follow
// mode until the caller's context ends.
package logs
