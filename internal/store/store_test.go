package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)
	page, err := s.ListResults(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestUpsertAndGetResult(t *testing.T) {
	s := openTestStore(t)

	err := s.UpsertResult(Result{
		ResultID:  "r1",
		Source:    "manual_input",
		Filename:  "novel.txt",
		Original:  "原文",
		Corrected: "原文",
	})
	require.NoError(t, err)

	detail, err := s.GetResult("r1", true, true)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "r1", detail.ResultID)
	require.NotNil(t, detail.Original)
	assert.Equal(t, "原文", *detail.Original)
	assert.Equal(t, 2, detail.OriginalLength)
}

func TestUpsertResultOverwritesByID(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.UpsertResult(Result{ResultID: "r1", Source: "manual_input", Filename: "a.txt", Original: "x"}))
	require.NoError(t, s.UpsertResult(Result{ResultID: "r1", Source: "manual_input", Filename: "b.txt", Original: "y"}))

	detail, err := s.GetResult("r1", true, true)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", detail.Filename)
	assert.Equal(t, "y", *detail.Original)
}

func TestGetResultMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	detail, err := s.GetResult("does-not-exist", true, true)
	require.NoError(t, err)
	assert.Nil(t, detail)
}

// TestListResultsPaginationMonotonic covers testable property 9: pages
// never overlap and walking all pages in order visits every row once.
func TestListResultsPaginationMonotonic(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 25; i++ {
		require.NoError(t, s.UpsertResult(Result{
			ResultID: filepath.Join("r", string(rune('a'+i))),
			Source:   "manual_input",
			Filename: "f.txt",
		}))
	}

	seen := map[string]bool{}
	limit := 10
	for offset := 0; offset < 25; offset += limit {
		page, err := s.ListResults(limit, offset)
		require.NoError(t, err)
		items := page.Items.([]ResultSummary)
		for _, it := range items {
			assert.False(t, seen[it.ResultID], "result %s seen twice across pages", it.ResultID)
			seen[it.ResultID] = true
		}
	}
	assert.Len(t, seen, 25)
}

func TestListResultsClampsLimit(t *testing.T) {
	s := openTestStore(t)
	page, err := s.ListResults(10000, -5)
	require.NoError(t, err)
	assert.Equal(t, 200, page.Limit)
	assert.Equal(t, 0, page.Offset)
}

func TestReplaceChaptersAndGetChapter(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertResult(Result{ResultID: "r1", Source: "task", Filename: "f.txt", UseChapters: true}))

	err := s.ReplaceChapters("r1", []ChapterResult{
		{ChapterIndex: 1, ChapterTitle: "第一章", Original: "甲", Corrected: "甲", HasChanges: false},
		{ChapterIndex: 2, ChapterTitle: "第二章", Original: "乙", Corrected: "乙乙", HasChanges: true},
	})
	require.NoError(t, err)

	ch, err := s.GetChapter("r1", 2)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "第二章", ch.ChapterTitle)
	assert.True(t, ch.HasChanges)

	detail, err := s.GetResult("r1", true, true)
	require.NoError(t, err)
	assert.Nil(t, detail.Original, "chapter-based results omit full text")
	assert.Len(t, detail.Chapters, 2)
}

func TestDeleteResultCascadesChapters(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertResult(Result{ResultID: "r1", Source: "task", Filename: "f.txt", UseChapters: true}))
	require.NoError(t, s.ReplaceChapters("r1", []ChapterResult{{ChapterIndex: 1, ChapterTitle: "第一章"}}))

	ok, err := s.DeleteResult("r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ch, err := s.GetChapter("r1", 1)
	require.NoError(t, err)
	assert.Nil(t, ch)

	ok, err = s.DeleteResult("r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestMigrateLegacyJSONRunsOnce covers testable property 10: migration
// imports rows exactly once and renames the source file aside.
func TestMigrateLegacyJSONRunsOnce(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "results.json")
	err := os.WriteFile(legacy, []byte(`{
		"r1": {"result_id": "r1", "filename": "old.txt", "original": "甲", "corrected": "甲乙", "has_changes": true, "created_at": "2025-01-01T00:00:00Z"},
		"r2": {"result_id": "r2", "filename": "chaptered.txt", "use_chapters": true, "chapters": [
			{"chapter_index": 1, "chapter_title": "第一章", "original": "一", "corrected": "一"}
		]}
	}`), 0o644)
	require.NoError(t, err)

	s, err := Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	_, statErr := os.Stat(legacy)
	assert.True(t, os.IsNotExist(statErr), "legacy file should be renamed aside")
	_, statErr = os.Stat(legacy + ".bak")
	assert.NoError(t, statErr)

	page, err := s.ListResults(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	detail, err := s.GetResult("r2", true, true)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.True(t, detail.UseChapters)
	assert.Len(t, detail.Chapters, 1)

	// Reopening must not re-import or error on the now-.bak file.
	s.Close()
	s2, err := Open(dir, nil)
	require.NoError(t, err)
	defer s2.Close()
	page2, err := s2.ListResults(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page2.Total)
}

func TestUpsertTaskAndGetTask(t *testing.T) {
	s := openTestStore(t)
	err := s.UpsertTask(Task{
		TaskID:   "t1",
		Status:   "processing",
		Filename: "book.txt",
	})
	require.NoError(t, err)

	task, ok, err := s.GetTask("t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "processing", task.Status)

	_, ok, err = s.GetTask("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListTasksClampsLimit(t *testing.T) {
	s := openTestStore(t)
	page, err := s.ListTasks(10000, -1)
	require.NoError(t, err)
	assert.Equal(t, 500, page.Limit)
	assert.Equal(t, 0, page.Offset)
}
