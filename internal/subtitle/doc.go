// Package subtitle renders the karaoke narration overlay.
//
// Render is stateless: given timing segments, the narration clock and a
// style it returns the frame to draw. Without timing data it falls back to
// chunks estimated from the narration speed. The package also wraps lines by
// display width and exports a narration track as an ASS karaoke script.
package subtitle
