// Package speech turns narration text into cached audio tracks.
//
// Service abstracts the external synthesis backend; HTTPService talks to it
// over JSON with retry and backoff. Cache memoizes results on disk by a
// content hash of (text, voice, rate), guards generation with a per-hash file
// lock, and supports forced invalidation. Narrator combines the cache with
// ffprobe and the timing mapper to produce ready-to-play AudioTrack values.
package speech
