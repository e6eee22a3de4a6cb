package reassembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeSingleChunk(t *testing.T) {
	r := New(50)
	assert.Equal(t, "只有一个片段", r.Merge([]string{"只有一个片段"}))
}

func TestMergeEmpty(t *testing.T) {
	r := New(50)
	assert.Equal(t, "", r.Merge(nil))
}

func TestMergeExactOverlap(t *testing.T) {
	r := New(5)
	prev := "这是第一段的内容，结尾重叠部分"
	curr := "结尾重叠部分这是第二段的新内容"
	got := r.Merge([]string{prev, curr})
	assert.Equal(t, "这是第一段的内容，结尾重叠部分这是第二段的新内容", got)
}

func TestMergeNoOverlapConcatenates(t *testing.T) {
	r := New(5)
	prev := "完全不同的第一段"
	curr := "完全不同的第二段"
	got := r.Merge([]string{prev, curr})
	assert.Equal(t, prev+"\n\n"+curr, got)
}

func TestMergeDuplicateShortChunkDropped(t *testing.T) {
	r := New(5)
	prev := "这是一个相对较长的前一个片段内容用于测试"
	curr := "前一个"
	got := r.Merge([]string{prev, curr})
	assert.Equal(t, prev, got)
}

func TestMergeIdempotentWhenChunksUnchanged(t *testing.T) {
	r := New(0)
	chunks := []string{"第一部分内容", "第二部分内容", "第三部分内容"}
	got := r.Merge(chunks)
	assert.Contains(t, got, "第一部分内容")
	assert.Contains(t, got, "第二部分内容")
	assert.Contains(t, got, "第三部分内容")
}
