package subtitle

import (
	"strings"

	"golang.org/x/text/width"
)

// CellWidth returns the display width of s in terminal cells: wide and
// fullwidth characters take two cells, everything else one.
func CellWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeCells(r)
	}
	return n
}

func runeCells(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// WrapTokens breaks tokens into lines of at most lineWidth cells without
// splitting a token. When more than maxLines lines result, the window that
// starts at the line being revealed is kept. Non-positive limits disable
// the respective constraint.
func WrapTokens(tokens []TokenReveal, lineWidth, maxLines int) [][]TokenReveal {
	if len(tokens) == 0 {
		return nil
	}
	var (
		lines [][]TokenReveal
		line  []TokenReveal
		used  int
	)
	for _, tok := range tokens {
		w := CellWidth(tok.Text)
		if lineWidth > 0 && used > 0 && used+w > lineWidth {
			lines = append(lines, line)
			line, used = nil, 0
		}
		if used == 0 && strings.TrimSpace(tok.Text) == "" && len(lines) > 0 {
			// Leading spaces on a continuation line are dropped.
			continue
		}
		line = append(line, tok)
		used += w
	}
	if len(line) > 0 {
		lines = append(lines, line)
	}
	if maxLines <= 0 || len(lines) <= maxLines {
		return lines
	}

	first := len(lines) - maxLines
	for i, l := range lines {
		if l[len(l)-1].Progress < 100 {
			if i < first {
				first = i
			}
			break
		}
	}
	return lines[first : first+maxLines]
}

// WrapText breaks text into lines of at most lineWidth cells, preferring to
// break after spaces and punctuation, and keeps the first maxLines lines.
func WrapText(text string, lineWidth, maxLines int) []string {
	if text == "" {
		return nil
	}
	if lineWidth <= 0 {
		return []string{text}
	}
	var (
		lines []string
		line  []rune
		used  int
		soft  = -1
	)
	for _, r := range text {
		w := runeCells(r)
		for used+w > lineWidth && len(line) > 0 {
			cut := len(line)
			if soft > 0 {
				cut = soft
			}
			lines = append(lines, strings.TrimSpace(string(line[:cut])))
			line = append([]rune(nil), line[cut:]...)
			used = CellWidth(string(line))
			soft = -1
		}
		line = append(line, r)
		used += w
		if r == ' ' || chunkBreaks.MatchString(string(r)) {
			soft = len(line)
		}
	}
	if rest := strings.TrimSpace(string(line)); rest != "" {
		lines = append(lines, rest)
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
