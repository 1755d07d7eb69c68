package timing

import (
	"unicode"
	"unicode/utf8"
)

// Kind classifies a tokenized unit.
type Kind string

const (
	KindChar       Kind = "char"
	KindWord       Kind = "word"
	KindNumber     Kind = "number"
	KindShortPunct Kind = "punct_short"
	KindLongPunct  Kind = "punct_long"
	KindSpace      Kind = "space"
	// KindOther holds characters outside every recognized category. Such
	// units carry zero weight so they occupy no time but still appear in the
	// output, keeping every character of the source text accounted for.
	KindOther Kind = "other"
)

const (
	weightChar       = 1.0
	weightShortPunct = 0.6
	weightLongPunct  = 1.2
	weightSpace      = 0.2
)

// Unit is one weighted piece of narration text.
type Unit struct {
	Text   string
	Kind   Kind
	Weight float64
}

// Visible reports whether the unit counts toward the per-segment character budget.
func (u Unit) Visible() bool {
	switch u.Kind {
	case KindChar, KindWord, KindNumber:
		return true
	default:
		return false
	}
}

// Punctuation reports whether the unit is short or long punctuation.
func (u Unit) Punctuation() bool {
	return u.Kind == KindShortPunct || u.Kind == KindLongPunct
}

// Tokenize scans text into weighted units. CJK ideographs yield one unit per
// character; Latin letters, digits, whitespace and unrecognized characters
// are grouped into runs.
func Tokenize(text string) []Unit {
	var units []Unit
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		kind := classify(r)
		end := i + size
		if groupsRuns(kind) {
			for end < len(text) {
				next, nextSize := utf8.DecodeRuneInString(text[end:])
				if classify(next) != kind {
					break
				}
				end += nextSize
			}
		}
		piece := text[i:end]
		units = append(units, Unit{Text: piece, Kind: kind, Weight: weightFor(kind, utf8.RuneCountInString(piece))})
		i = end
	}
	return units
}

func classify(r rune) Kind {
	switch {
	case r >= 0x4E00 && r <= 0x9FA5:
		return KindChar
	case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		return KindWord
	case r >= '0' && r <= '9':
		return KindNumber
	case r == '，' || r == '、' || r == '；' || r == '：':
		return KindShortPunct
	case r == '。' || r == '！' || r == '？' || r == '…':
		return KindLongPunct
	case unicode.IsSpace(r):
		return KindSpace
	default:
		return KindOther
	}
}

func groupsRuns(kind Kind) bool {
	switch kind {
	case KindWord, KindNumber, KindSpace, KindOther:
		return true
	default:
		return false
	}
}

func weightFor(kind Kind, length int) float64 {
	switch kind {
	case KindChar:
		return weightChar
	case KindWord:
		return max(0.5, 0.4*float64(length))
	case KindNumber:
		return max(0.4, 0.3*float64(length))
	case KindShortPunct:
		return weightShortPunct
	case KindLongPunct:
		return weightLongPunct
	case KindSpace:
		return weightSpace
	default:
		return 0
	}
}
