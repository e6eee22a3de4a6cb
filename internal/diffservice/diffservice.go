// Package diffservice computes character-level diffs between an
// original and a corrected text, and classifies whether the diff
// represents a meaningful change or pure whitespace churn.
package diffservice

import (
	"regexp"
	"strings"

	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Op mirrors diff-match-patch's three-way operation classification.
type Op int

const (
	OpDelete Op = -1
	OpEqual  Op = 0
	OpInsert Op = 1
)

// Segment is one run of a diff, tagged with its operation.
type Segment struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

var (
	runsOfSpaces     = regexp.MustCompile(` +`)
	runsOfBlankLines = regexp.MustCompile(`\n\s*\n+`)
)

// ComputeDiff runs diff-match-patch's main diff algorithm followed by
// its semantic cleanup pass, and returns the result as Segments.
func ComputeDiff(original, corrected string) []Segment {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, corrected, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	segments := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		segments = append(segments, Segment{Op: Op(d.Type), Text: d.Text})
	}
	return segments
}

// NormalizeForComparison collapses space runs to a single space,
// collapses blank-line runs to a single newline, and trims the ends —
// used to decide whether a diff is pure formatting noise.
func NormalizeForComparison(text string) string {
	text = runsOfSpaces.ReplaceAllString(text, " ")
	text = runsOfBlankLines.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// HasMeaningfulChanges reports whether original and corrected differ
// in ways beyond pure whitespace/formatting.
func HasMeaningfulChanges(original, corrected string) bool {
	if original == corrected {
		return false
	}
	if NormalizeForComparison(original) == NormalizeForComparison(corrected) {
		return false
	}
	for _, seg := range ComputeDiff(original, corrected) {
		if seg.Op != OpEqual && strings.TrimSpace(seg.Text) != "" {
			return true
		}
	}
	return false
}

// HighlightResult is the side-by-side rendering of a diff for display:
// each side keeps only the segments relevant to it (original keeps
// equal+deleted, corrected keeps equal+inserted), plus an overall
// has_changes verdict consistent with HasMeaningfulChanges.
type HighlightResult struct {
	OriginalSegments  []Segment `json:"original_segments"`
	CorrectedSegments []Segment `json:"corrected_segments"`
	HasChanges        bool      `json:"has_changes"`
}

// HighlightDiff builds the display payload consumed by the diff view.
func HighlightDiff(original, corrected string) HighlightResult {
	diffs := ComputeDiff(original, corrected)

	result := HighlightResult{
		OriginalSegments:  make([]Segment, 0, len(diffs)),
		CorrectedSegments: make([]Segment, 0, len(diffs)),
	}

	meaningful := false
	for _, seg := range diffs {
		switch seg.Op {
		case OpEqual:
			result.OriginalSegments = append(result.OriginalSegments, seg)
			result.CorrectedSegments = append(result.CorrectedSegments, seg)
		case OpDelete:
			if strings.TrimSpace(seg.Text) != "" {
				meaningful = true
			}
			result.OriginalSegments = append(result.OriginalSegments, seg)
		case OpInsert:
			if strings.TrimSpace(seg.Text) != "" {
				meaningful = true
			}
			result.CorrectedSegments = append(result.CorrectedSegments, seg)
		}
	}

	if meaningful && NormalizeForComparison(original) == NormalizeForComparison(corrected) {
		meaningful = false
	}
	result.HasChanges = meaningful

	return result
}
