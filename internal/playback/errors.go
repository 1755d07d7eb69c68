package playback

import "errors"

var (
	// ErrNoProcesses reports a command that needs a loaded process list.
	ErrNoProcesses = errors.New("playback: no processes loaded")
	// ErrUnknownProcess reports a selection that matches no loaded process.
	ErrUnknownProcess = errors.New("playback: unknown process")
)
