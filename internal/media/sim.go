package media

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimTrack is a Track whose position advances with a Clock at the current
// rate. It stops at Duration and reports Ended, mirroring a media element
// that reached the end of its source.
type SimTrack struct {
	mu     sync.Mutex
	clock  Clock
	src    string
	length float64
	pos    float64
	anchor time.Time
	rate   float64
	paused bool
	muted  bool

	// SourceDurations maps sources to their length; SetSource applies it.
	// A source with a query falls back to its bare entry.
	SourceDurations map[string]float64
	// Probe measures sources missing from SourceDurations. It runs under the
	// track lock, so it must not block; ProbeCache.Duration fits. A result
	// <= 0 leaves the length unknown.
	Probe func(src string) float64
	// PlayErr, when set, makes Play reject.
	PlayErr error
	// ResetRateOnPlay resets the rate to 1 whenever Play starts.
	ResetRateOnPlay bool

	plays int
	seeks []float64
}

// NewSimTrack returns a paused track of the given length.
func NewSimTrack(clock Clock, duration float64) *SimTrack {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SimTrack{clock: clock, length: duration, rate: 1, paused: true}
}

func (s *SimTrack) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PlayErr != nil {
		return s.PlayErr
	}
	pos := s.positionLocked()
	if s.endedLocked(pos) {
		pos = 0
	}
	s.pos = pos
	s.anchor = s.clock.Now()
	s.paused = false
	if s.ResetRateOnPlay {
		s.rate = 1
	}
	s.plays++
	return nil
}

func (s *SimTrack) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle()
	s.paused = true
}

func (s *SimTrack) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused || s.endedLocked(s.positionLocked())
}

func (s *SimTrack) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedLocked(s.positionLocked())
}

func (s *SimTrack) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *SimTrack) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	if s.length > 0 && seconds > s.length {
		seconds = s.length
	}
	s.pos = seconds
	s.anchor = s.clock.Now()
	s.seeks = append(s.seeks, seconds)
}

func (s *SimTrack) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

func (s *SimTrack) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *SimTrack) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle()
	s.rate = rate
}

func (s *SimTrack) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *SimTrack) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *SimTrack) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src
}

// SetSource loads a new source: the track pauses and rewinds to 0.
func (s *SimTrack) SetSource(src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = src
	s.pos = 0
	s.paused = true
	if d, ok := s.SourceDurations[src]; ok {
		s.length = d
		return
	}
	if d, ok := s.SourceDurations[StripQuery(src)]; ok {
		s.length = d
		return
	}
	if s.Probe != nil && src != "" {
		s.length = max(s.Probe(src), 0)
	}
}

// Plays reports how many times Play succeeded.
func (s *SimTrack) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

// Seeks returns every position passed to Seek, after clamping.
func (s *SimTrack) Seeks() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.seeks...)
}

// settle folds elapsed playing time into pos and re-anchors.
func (s *SimTrack) settle() {
	s.pos = s.positionLocked()
	s.anchor = s.clock.Now()
}

func (s *SimTrack) positionLocked() float64 {
	pos := s.pos
	if !s.paused {
		pos += s.clock.Now().Sub(s.anchor).Seconds() * s.rate
	}
	if s.length > 0 && pos > s.length {
		pos = s.length
	}
	return pos
}

func (s *SimTrack) endedLocked(pos float64) bool {
	return s.length > 0 && pos >= s.length
}
