// Package preflight provides readiness checks for the filesystem paths and
// external services kaizen depends on.
//
// These checks run in two contexts:
//   - The serve command calls RunAll at startup and logs every failure; a
//     failing speech check degrades narration but never blocks playback.
//   - The CLI "kaizen status" command prints the same results as a table.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
