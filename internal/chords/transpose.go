package chords

import (
	"regexp"
	"strings"
)

// chordPattern matches a root letter, an optional accidental and a single quality component.
//
// Only one quality component is captured ("Cmaj7" matches "Cmaj"); whatever follows the match is
// copied through as literal text, so multi-part qualities still come out intact.
var chordPattern = func() *regexp.Regexp {
	re := regexp.MustCompile(`([A-G][#b]?)([Mm]|dim|aug|maj|sus|[0-9]|º)?`)
	re.Longest()
	return re
}()

// SegmentKind distinguishes chord tokens from the text around them.
type SegmentKind int

const (
	Literal SegmentKind = iota
	Chord
)

// Segment is a run of text produced by [Tokenize].
type Segment struct {
	Kind   SegmentKind
	Text   string // Exact source text of the segment
	Root   Key    // Chord root; zero for literals
	Suffix string // Quality suffix as written; empty for literals
}

// Transpose shifts the root of every recognized chord token in text from source to target.
//
// Quality suffixes and all other text are copied verbatim. Tokens whose root is not in the key table
// (e.g. "Bb", "E#") are left alone. Equal keys, or keys outside the table, return text unchanged.
func Transpose(source, target Key, text string) string {
	if source == target || !source.Valid() || !target.Valid() {
		return text
	}

	interval := Interval(source, target)

	var b strings.Builder
	b.Grow(len(text))

	for _, seg := range Tokenize(text) {
		if seg.Kind != Chord {
			b.WriteString(seg.Text)
			continue
		}
		b.WriteString(seg.Root.Shift(interval).String())
		b.WriteString(seg.Suffix)
	}

	return b.String()
}

// TransposeBy shifts chord roots by a signed number of semitones.
func TransposeBy(semitones int, text string) string {
	return Transpose(C, C.Shift(semitones), text)
}

// Tokenize splits text into literal and chord segments.
//
// Concatenating the Text of every segment reproduces the input. Adjacent literal runs are merged.
func Tokenize(text string) []Segment {
	var segments []Segment
	appendLiteral := func(s string) {
		if s == "" {
			return
		}
		if n := len(segments); n > 0 && segments[n-1].Kind == Literal {
			segments[n-1].Text += s
			return
		}
		segments = append(segments, Segment{Kind: Literal, Text: s})
	}

	last := 0
	for _, loc := range chordPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		root := text[loc[2]:loc[3]]

		key, ok := lookupRoot(root)
		if !ok {
			continue
		}

		appendLiteral(text[last:start])

		var suffix string
		if loc[4] >= 0 {
			suffix = text[loc[4]:loc[5]]
		}

		segments = append(segments, Segment{
			Kind:   Chord,
			Text:   text[start:end],
			Root:   key,
			Suffix: suffix,
		})
		last = end
	}
	appendLiteral(text[last:])

	return segments
}

// Chords returns only the chord segments of text, in order.
func Chords(text string) []Segment {
	var out []Segment
	for _, seg := range Tokenize(text) {
		if seg.Kind == Chord {
			out = append(out, seg)
		}
	}
	return out
}
