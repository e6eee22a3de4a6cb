package diffservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasMeaningfulChangesIdenticalText(t *testing.T) {
	assert.False(t, HasMeaningfulChanges("今天天气很好。", "今天天气很好。"))
}

func TestHasMeaningfulChangesWhitespaceOnly(t *testing.T) {
	assert.False(t, HasMeaningfulChanges("今天天气  很好。\n\n\n明天也好。", "今天天气 很好。\n明天也好。"))
}

func TestHasMeaningfulChangesRealEdit(t *testing.T) {
	assert.True(t, HasMeaningfulChanges("他跑的很快。", "他跑得很快。"))
}

// TestHasMeaningfulChangesProperty covers testable property 5: a diff
// with any non-whitespace insert/delete segment is always meaningful.
func TestHasMeaningfulChangesProperty(t *testing.T) {
	cases := []struct {
		original, corrected string
		meaningful          bool
	}{
		{"甲乙丙", "甲乙丙", false},
		{"甲乙丙", "甲  乙丙", false},
		{"甲乙丙", "甲丁丙", true},
		{"甲乙丙\n\n\n\n丁", "甲乙丙\n丁", false},
		{"甲乙丙", "甲乙丙戊", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.meaningful, HasMeaningfulChanges(c.original, c.corrected), "original=%q corrected=%q", c.original, c.corrected)
	}
}

func TestHighlightDiffSegmentsCoverBothSides(t *testing.T) {
	h := HighlightDiff("他跑的很快。", "他跑得很快。")
	assert.True(t, h.HasChanges)
	assert.NotEmpty(t, h.OriginalSegments)
	assert.NotEmpty(t, h.CorrectedSegments)

	var rebuiltOriginal, rebuiltCorrected string
	for _, seg := range h.OriginalSegments {
		rebuiltOriginal += seg.Text
	}
	for _, seg := range h.CorrectedSegments {
		rebuiltCorrected += seg.Text
	}
	assert.Equal(t, "他跑的很快。", rebuiltOriginal)
	assert.Equal(t, "他跑得很快。", rebuiltCorrected)
}

func TestHighlightDiffNoChangesReportsFalse(t *testing.T) {
	h := HighlightDiff("完全相同的文本", "完全相同的文本")
	assert.False(t, h.HasChanges)
}

func TestNormalizeForComparisonCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "甲 乙\n丙", NormalizeForComparison("甲   乙\n\n\n丙  "))
}
