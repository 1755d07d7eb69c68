// Package logging builds the slog loggers used across kaizen.
//
// It offers a compact console handler for interactive use, a JSON handler for
// machine consumption, and a bounded StreamHub that the player API tails for
// live log views. Attribute helpers and the Field* constants keep key names
// consistent, and WarnWithContext enforces the cause/impact/next-step shape
// on warnings.
package logging
