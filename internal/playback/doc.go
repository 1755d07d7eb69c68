// Package playback drives synchronized before/after video playback with an
// optional narration track.
//
// The Controller owns three media tracks (before video, after video, and
// narration audio) and serializes every command and time update behind a
// single mutex. Segment state lives in an explicit State value advanced by the
// pure Transition function; what happens when a process finishes is decided
// by Decide, a pure table over looping, global mode, and the remaining
// processes.
//
// Narration audio is the authoritative clock while it plays. Otherwise
// elapsed time falls back to a wall-clock delta. In combined narration mode
// the before video is the sync reference and the after video is corrected
// towards it; in separate mode each leg advances only once its video and its
// narration are both done.
package playback
