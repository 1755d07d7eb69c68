// Package timing projects narration text onto an audio timeline.
//
// Tokenize splits text into weighted units (CJK ideographs, Latin words,
// digit runs, punctuation, whitespace). Map distributes a known audio
// duration across those units by weight and groups them into display
// segments that drive the karaoke subtitle renderer. Both functions are pure.
package timing
