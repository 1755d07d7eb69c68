// Package catalog persists projects, stages, improvement processes,
// annotations, and user settings in SQLite.
//
// Open applies the embedded migrations and returns a Store. Processes are
// always returned in their explicit sort order, which is the order the
// player walks them in global mode. Time saved is derived from the before
// and after windows on every write.
package catalog
