package timing

import "unicode/utf8"

// MaxVisiblePerSegment is the visible-unit budget after which a segment
// closes at the next short punctuation mark or space.
const MaxVisiblePerSegment = 32

// Token is a unit placed on the audio timeline. Times are seconds.
type Token struct {
	Text     string  `json:"text"`
	Type     Kind    `json:"type"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// Segment is a displayable group of consecutive tokens.
type Segment struct {
	Tokens []Token `json:"tokens"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}

// Map distributes totalDuration across the weighted units of text and
// groups them into segments. Segments partition [0, totalDuration] with no
// gaps or overlaps. Empty text, a non-positive duration, or text without any
// weighted unit yields nil, which callers treat as "no timing data".
func Map(text string, totalDuration float64) []Segment {
	if text == "" || !(totalDuration > 0) {
		return nil
	}
	units := Tokenize(text)
	var totalWeight float64
	for _, u := range units {
		totalWeight += u.Weight
	}
	if totalWeight <= 0 {
		return nil
	}

	timePerWeight := totalDuration / totalWeight
	var (
		segments []Segment
		current  []Token
		visible  int
		cursor   float64
	)
	for i, u := range units {
		duration := u.Weight * timePerWeight
		tok := Token{Text: u.Text, Type: u.Kind, Start: cursor, End: cursor + duration, Duration: duration}
		if i == len(units)-1 {
			tok.End = totalDuration
		}
		cursor = tok.End
		current = append(current, tok)
		if u.Visible() {
			visible++
		}

		closeSegment := u.Kind == KindLongPunct ||
			(visible >= MaxVisiblePerSegment && (u.Punctuation() || u.Kind == KindSpace)) ||
			i == len(units)-1
		if closeSegment {
			segments = append(segments, Segment{
				Tokens: current,
				Start:  current[0].Start,
				End:    current[len(current)-1].End,
			})
			current = nil
			visible = 0
		}
	}
	return segments
}

// EstimateDuration approximates the spoken length of text at speed characters
// per second. It returns 0 when speed is not positive.
func EstimateDuration(text string, speed float64) float64 {
	if !(speed > 0) {
		return 0
	}
	return float64(utf8.RuneCountInString(text)) / speed
}

// Duration returns the end of the final segment, or 0 when there are none.
func Duration(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].End
}
