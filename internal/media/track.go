package media

import "context"

// Track is one independently clocked media source. Positions and durations
// are seconds. A Duration of 0 means the length is unknown.
type Track interface {
	Play(ctx context.Context) error
	Pause()
	Paused() bool
	Ended() bool
	Position() float64
	Seek(seconds float64)
	Duration() float64
	Rate() float64
	SetRate(rate float64)
	Muted() bool
	SetMuted(muted bool)
	Source() string
	SetSource(src string)
}
