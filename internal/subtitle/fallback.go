package subtitle

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinChunkLength is the fewest characters a fallback chunk holds unless
	// it is the last one.
	MinChunkLength = 10
	// LookAhead shows fallback chunks slightly early to offset perceived lag.
	LookAhead = 0.5
)

var (
	lineBreaks  = regexp.MustCompile(`[\r\n]+`)
	chunkBreaks = regexp.MustCompile(`[，。！？,.;；! ?]`)
)

// Chunk is a run of narration text with character offsets into the cleaned
// script. Offsets count characters, not bytes.
type Chunk struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// CleanText collapses line breaks into spaces and trims the result.
func CleanText(text string) string {
	return strings.TrimSpace(lineBreaks.ReplaceAllString(text, " "))
}

// Chunks splits cleaned text after each sentence punctuation mark or space
// and merges pieces until each holds at least MinChunkLength characters.
func Chunks(text string) []Chunk {
	clean := CleanText(text)
	if clean == "" {
		return nil
	}

	var pieces []string
	last := 0
	for _, loc := range chunkBreaks.FindAllStringIndex(clean, -1) {
		pieces = append(pieces, clean[last:loc[1]])
		last = loc[1]
	}
	pieces = append(pieces, clean[last:])

	var (
		chunks  []Chunk
		current strings.Builder
		offset  int
	)
	for i, piece := range pieces {
		current.WriteString(piece)
		acc := current.String()
		trimmed := strings.TrimSpace(acc)
		if utf8.RuneCountInString(trimmed) < MinChunkLength && i < len(pieces)-1 {
			continue
		}
		if trimmed != "" {
			n := utf8.RuneCountInString(acc)
			chunks = append(chunks, Chunk{Text: trimmed, Start: offset, End: offset + n})
			offset += n
		}
		current.Reset()
	}
	return chunks
}

// FallbackText picks the chunk whose estimated [start, end) contains
// t+LookAhead at speed characters per second. Once the whole script has
// been spoken it returns endMarker, which may be empty.
func FallbackText(text string, t, speed float64, endMarker string) (string, Mode) {
	if !(speed > 0) {
		return "", ModeNone
	}
	clean := CleanText(text)
	if clean == "" {
		return "", ModeNone
	}
	adjusted := t + LookAhead
	for _, chunk := range Chunks(clean) {
		start := float64(chunk.Start) / speed
		end := float64(chunk.End) / speed
		if adjusted >= start && adjusted < end {
			return chunk.Text, ModeFallback
		}
	}
	if endMarker != "" && t >= EstimatedDuration(clean, speed) {
		return endMarker, ModeEnd
	}
	return "", ModeNone
}

// EstimatedDuration is the character count of the cleaned script divided by
// speed.
func EstimatedDuration(text string, speed float64) float64 {
	if !(speed > 0) {
		return 0
	}
	return float64(utf8.RuneCountInString(CleanText(text))) / speed
}
