// Package reassembler merges a corrected chunk sequence back into a
// single document, tolerating the fact that a model may have slightly
// rewritten the overlap seam between adjacent chunks rather than
// returning it byte-for-byte.
package reassembler

import (
	"strings"
	"unicode/utf8"
)

// Reassembler merges chunks produced with a known ChunkOverlap.
type Reassembler struct {
	ChunkOverlap int
}

// New returns a Reassembler configured for the overlap used to produce
// the chunks it will merge.
func New(chunkOverlap int) *Reassembler {
	return &Reassembler{ChunkOverlap: chunkOverlap}
}

// Merge reconstructs the full document from an ordered chunk list.
func (r *Reassembler) Merge(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	if len(chunks) == 1 {
		return chunks[0]
	}

	var merged strings.Builder
	merged.WriteString(chunks[0])

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		curr := chunks[i]

		if tail, ok := r.removeOverlap(prev, curr); ok {
			merged.WriteString(tail)
		} else {
			merged.WriteString("\n\n")
			merged.WriteString(curr)
		}
	}

	return merged.String()
}

// removeOverlap implements the five ordered matching strategies. The
// boolean result reports whether an overlap was identified; when false
// the caller concatenates with a blank-line separator.
func (r *Reassembler) removeOverlap(prev, curr string) (string, bool) {
	if prev == "" || curr == "" {
		return "", false
	}
	prevRunes := []rune(prev)
	currRunes := []rune(curr)

	maxOverlap := min3(len(prevRunes), len(currRunes), r.ChunkOverlap*3)

	// Strategy 1: exact suffix/prefix match.
	lowerBound := r.ChunkOverlap - 50
	if lowerBound < 0 {
		lowerBound = 0
	}
	for overlapLen := maxOverlap; overlapLen > lowerBound; overlapLen-- {
		prevSuffix := string(prevRunes[len(prevRunes)-overlapLen:])
		currPrefix := string(currRunes[:overlapLen])
		if prevSuffix == currPrefix {
			return string(currRunes[overlapLen:]), true
		}
	}

	// Strategy 2: cut at the last full stop in prev.
	if periodIdx := lastIndexRune(prevRunes, '。'); periodIdx >= 0 && periodIdx >= len(prevRunes)-maxOverlap {
		matched := strings.TrimSpace(string(prevRunes[periodIdx+1:]))
		if matched != "" && strings.HasPrefix(curr, matched) {
			return string(currRunes[utf8.RuneCountInString(matched):]), true
		}
		matchedNoSpace := stripSpacesAndNewlines(matched)
		matchedLen := utf8.RuneCountInString(matched)
		if matchedLen <= len(currRunes) {
			currPrefixNoSpace := stripSpacesAndNewlines(string(currRunes[:matchedLen]))
			if matchedNoSpace != "" && strings.HasPrefix(currPrefixNoSpace, matchedNoSpace) {
				return string(currRunes[matchedLen:]), true
			}
		}
	}

	// Strategy 3: cut at the last newline in prev.
	if newlineIdx := lastIndexRune(prevRunes, '\n'); newlineIdx >= 0 && newlineIdx >= len(prevRunes)-maxOverlap {
		matched := strings.TrimSpace(string(prevRunes[newlineIdx+1:]))
		if matched != "" && strings.HasPrefix(curr, matched) {
			return string(currRunes[utf8.RuneCountInString(matched):]), true
		}
	}

	// Strategy 4: longest boundary match, curr's prefix against prev's suffix.
	bestMatchLen := 0
	searchLen := min3(200, len(currRunes), len(prevRunes))
	for testLen := searchLen; testLen > 10; testLen-- {
		testPrefix := string(currRunes[:testLen])
		if strings.HasSuffix(prev, testPrefix) {
			bestMatchLen = testLen
			break
		}
	}
	if bestMatchLen >= 10 {
		return string(currRunes[bestMatchLen:]), true
	}

	// Strategy 5: curr is a short duplicate fully contained in prev.
	if float64(len(currRunes)) < float64(len(prevRunes))*0.5 && strings.Contains(prev, curr) {
		return "", true
	}

	return "", false
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func lastIndexRune(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func stripSpacesAndNewlines(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}
