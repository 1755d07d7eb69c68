package catalog

import "errors"

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("catalog: not found")
	// ErrInvalidProcess reports a process whose windows contradict its type.
	ErrInvalidProcess = errors.New("catalog: invalid process")
)
