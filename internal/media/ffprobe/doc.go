// Package ffprobe wraps ffprobe JSON output for the media kaizen plays.
//
// Inspect executes ffprobe and decodes the result. Result helpers expose the
// pieces the player needs: the narration audio length (DurationSeconds) and
// the intrinsic frame size of a recording (VideoDimensions) used for
// annotation letterboxing.
package ffprobe
