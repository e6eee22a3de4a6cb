package engine

import (
	"strings"
	"unicode/utf8"
)

// sentenceUnit is one schedulable unit of the per-sentence (Ollama)
// path: the text to send to the adapter and the line ending that
// followed it in the source, preserved so reassembly recreates the
// original line structure exactly.
type sentenceUnit struct {
	text    string
	trailer string // "\n" or ""
	blank   bool   // carried through untouched, doesn't count as processed
}

// splitIntoSentenceUnits implements the per-sentence split described
// for the engine's mode (A): split on newlines first, then any
// over-length line is progressively split on 。！？, then ，；, then
// forced by character count.
func splitIntoSentenceUnits(text string, maxLen int) []sentenceUnit {
	lines := strings.Split(text, "\n")
	var units []sentenceUnit

	for i, line := range lines {
		trailer := "\n"
		if i == len(lines)-1 {
			trailer = ""
		}

		if strings.TrimSpace(line) == "" {
			units = append(units, sentenceUnit{text: line, trailer: trailer, blank: true})
			continue
		}

		if utf8.RuneCountInString(line) <= maxLen {
			units = append(units, sentenceUnit{text: line, trailer: trailer})
			continue
		}

		pieces := splitByDelimiters(line, maxLen, "。！？")
		for pi, piece := range pieces {
			t := ""
			if pi == len(pieces)-1 {
				t = trailer
			}
			units = append(units, sentenceUnit{text: piece, trailer: t})
		}
	}

	return units
}

// splitByDelimiters greedily groups delimiter-terminated segments up to
// maxLen runes, recursing to a finer delimiter set and finally a raw
// character split for any segment still too long.
func splitByDelimiters(s string, maxLen int, delimiters string) []string {
	segments := splitKeepDelimiter(s, delimiters)

	var out []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}

	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if utf8.RuneCountInString(seg) > maxLen {
			flush()
			if delimiters == "。！？" {
				out = append(out, splitByDelimiters(seg, maxLen, "，；")...)
			} else {
				out = append(out, forceSplitRunes(seg, maxLen)...)
			}
			continue
		}
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(seg) > maxLen {
			flush()
		}
		current.WriteString(seg)
	}
	flush()

	return out
}

// splitKeepDelimiter splits s on any rune in delimiters, keeping the
// delimiter attached to the end of the preceding segment.
func splitKeepDelimiter(s string, delimiters string) []string {
	var segments []string
	var current strings.Builder
	for _, r := range s {
		current.WriteRune(r)
		if strings.ContainsRune(delimiters, r) {
			segments = append(segments, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

func forceSplitRunes(s string, maxLen int) []string {
	runes := []rune(s)
	var out []string
	for i := 0; i < len(runes); i += maxLen {
		end := i + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
