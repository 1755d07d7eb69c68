package subtitle

import (
	"fmt"
	"io"
	"math"
	"strings"

	"kaizen/internal/timing"
)

const (
	assPlayResX = 1920
	assPlayResY = 1080
	assFont     = "Noto Sans CJK SC"
)

var assEscaper = strings.NewReplacer(`{`, `｛`, `}`, `｝`, `\`, `＼`, "\n", " ")

// WriteASS writes segments as an Advanced SubStation Alpha script with one
// dialogue line per segment and a \kf sweep per token. The secondary colour
// is the unrevealed text and the primary colour the highlight.
func WriteASS(w io.Writer, title string, segments []timing.Segment, style Style) error {
	style = style.Clamp()
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(assEscaper.Replace(title)))
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\nPlayResY: %d\n", assPlayResX, assPlayResY)
	b.WriteString("WrapStyle: 0\nScaledBorderAndShadow: yes\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, " +
		"Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
		"Alignment, MarginL, MarginR, MarginV, Encoding\n")
	backAlpha := uint8(math.Round((1 - style.BackgroundOpacity) * 255))
	marginV := int(math.Round((100 - style.PositionY) / 100 * assPlayResY))
	fmt.Fprintf(&b, "Style: Karaoke,%s,%d,%s,%s,&H00000000,%s,0,0,0,0,100,100,0,0,3,1,0,2,10,10,%d,1\n\n",
		assFont, style.FontSize*2,
		assColour(style.HighlightColor, 0), assColour(style.TextColor, 0), assColour(style.BackgroundColor, backAlpha),
		marginV)

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, seg := range segments {
		if len(seg.Tokens) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Karaoke,,0,0,0,,%s\n",
			assTime(seg.Start), assTime(seg.End), karaokeText(seg))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// karaokeText emits one \kf tag per token. Durations are derived from
// rounded boundaries so they sum to the segment length.
func karaokeText(seg timing.Segment) string {
	var b strings.Builder
	for _, tok := range seg.Tokens {
		cs := centiseconds(tok.End) - centiseconds(tok.Start)
		if cs < 0 {
			cs = 0
		}
		fmt.Fprintf(&b, `{\kf%d}%s`, cs, assEscaper.Replace(tok.Text))
	}
	return b.String()
}

func centiseconds(seconds float64) int64 {
	return int64(math.Round(seconds * 100))
}

// assTime formats seconds as H:MM:SS.cc.
func assTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	cs := centiseconds(seconds)
	h := cs / 360000
	m := cs / 6000 % 60
	s := cs / 100 % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

// assColour converts #RRGGBB to &HAABBGGRR.
func assColour(hex string, alpha uint8) string {
	r, g, b, err := parseHex(hex)
	if err != nil {
		r, g, b = 255, 255, 255
	}
	return fmt.Sprintf("&H%02X%02X%02X%02X", alpha, b, g, r)
}
