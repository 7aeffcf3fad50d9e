// Package hashtag extracts marker-prefixed tags from free text.
package hashtag

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const DefaultMarker = '#'

// Extractor recognizes tags as whitespace-delimited spans made of the marker
// followed by one or more word characters. A span with anything else after the
// marker is not a tag at all; it is never truncated to its valid prefix.
type Extractor struct {
	marker rune
	token  *regexp.Regexp
}

func New(marker rune) (*Extractor, error) {
	if unicode.IsSpace(marker) || unicode.IsLetter(marker) || unicode.IsDigit(marker) || marker == '_' || marker == unicode.ReplacementChar {
		return nil, fmt.Errorf("invalid hashtag marker %q", marker)
	}
	return &Extractor{
		marker: marker,
		token:  regexp.MustCompile(`^` + regexp.QuoteMeta(string(marker)) + `[\p{L}\p{M}\p{Nd}_]+$`),
	}, nil
}

func Default() *Extractor {
	e, _ := New(DefaultMarker)
	return e
}

func (e *Extractor) Marker() rune { return e.marker }

// Extract returns tags in order of appearance, duplicates included, marker kept.
func (e *Extractor) Extract(text string) []string {
	out := []string{}
	for _, sp := range spans(text) {
		if s := text[sp[0]:sp[1]]; e.IsTag(s) {
			out = append(out, s)
		}
	}
	return out
}

func (e *Extractor) IsTag(s string) bool {
	return e.token.MatchString(s)
}

// Strip removes every tag from text. A removed tag takes its separating
// whitespace with it, so kept words stay single-spaced where they were, and
// the result has no leading or trailing whitespace.
func (e *Extractor) Strip(text string) string {
	var b strings.Builder
	prevEnd, gap := -1, -1
	for _, sp := range spans(text) {
		if prevEnd >= 0 && gap < 0 {
			gap = sp[0]
		}
		if e.IsTag(text[sp[0]:sp[1]]) {
			continue
		}
		if prevEnd >= 0 {
			b.WriteString(text[prevEnd:gap])
		}
		b.WriteString(text[sp[0]:sp[1]])
		prevEnd, gap = sp[1], -1
	}
	return b.String()
}

// Bare returns tag without its leading marker.
func (e *Extractor) Bare(tag string) string {
	return strings.TrimPrefix(tag, string(e.marker))
}

// spans returns [start, end) byte offsets of the non-space runs in text.
func spans(text string) [][2]int {
	var out [][2]int
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, [2]int{start, len(text)})
	}
	return out
}
