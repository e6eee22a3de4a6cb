package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weimengliu/textproof/internal/engine"
	"github.com/weimengliu/textproof/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	m := NewManager(st, nil)
	t.Cleanup(func() { m.Stop(); st.Close() })
	return m
}

func TestCreateTaskStartsPending(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("novel.txt", 1024, "openai", "gpt-4o-mini", false)

	snap := tsk.Snapshot()
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, "novel.txt", snap.Filename)

	got, ok := m.GetTask(tsk.TaskID)
	require.True(t, ok)
	assert.Equal(t, tsk.TaskID, got.TaskID)
}

func TestUpdateProgressTransitionsToProcessing(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("novel.txt", 1024, "openai", "", false)

	m.UpdateProgress(tsk.TaskID, 1, 5, nil, "")

	snap := tsk.Snapshot()
	assert.Equal(t, StatusProcessing, snap.Status)
	assert.Equal(t, 1, snap.ProgressCurrent)
	assert.Equal(t, 5, snap.ProgressTotal)
	require.NotNil(t, snap.StartedAt)
}

func TestUpdateProgressTracksChapterSubProgress(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("novel.txt", 1024, "openai", "", true)

	idx := 2
	m.UpdateProgress(tsk.TaskID, 3, 10, &idx, "第二章")

	snap := tsk.Snapshot()
	require.Len(t, snap.ChapterProgress, 1)
	assert.Equal(t, "第二章", snap.ChapterProgress[0].ChapterTitle)
	assert.Equal(t, 3, snap.ChapterProgress[0].Current)
}

func TestCompleteTaskPersistsResult(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("novel.txt", 1024, "openai", "gpt-4o-mini", false)

	m.CompleteTask(tsk.TaskID, "原文", "原文修正", true, nil)

	snap := tsk.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.CompletedAt)

	detail, err := m.GetResult(tsk.TaskID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.True(t, detail.HasChanges)
	require.NotNil(t, detail.Corrected)
	assert.Equal(t, "原文修正", *detail.Corrected)
}

func TestCompleteTaskWithChaptersPersistsPerChapterRows(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("novel.txt", 2048, "openai", "", true)

	m.CompleteTask(tsk.TaskID, "甲\n\n乙", "甲\n\n乙乙", true, []ChapterOutcome{
		{ChapterIndex: 1, ChapterTitle: "第一章", Original: "甲", Corrected: "甲", HasChanges: false},
		{ChapterIndex: 2, ChapterTitle: "第二章", Original: "乙", Corrected: "乙乙", HasChanges: true},
	})

	detail, err := m.GetResult(tsk.TaskID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.True(t, detail.UseChapters)
	require.Len(t, detail.Chapters, 2)

	ch, err := m.GetChapter(tsk.TaskID, 2)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.True(t, ch.HasChanges)
}

func TestFailTaskRecordsError(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("novel.txt", 1024, "openai", "", false)

	m.FailTask(tsk.TaskID, "连接失败")

	snap := tsk.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "连接失败", snap.Error)
}

func TestSaveManualResultCreatesStandaloneResult(t *testing.T) {
	m := newTestManager(t)

	id, err := m.SaveManualResult("段落.txt", "甲", "甲乙", true, "deepseek", "deepseek-chat")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	detail, err := m.GetResult(id)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "manual_input", detail.Source)
}

func TestListTasksOrdersNewestFirst(t *testing.T) {
	m := newTestManager(t)
	first := m.CreateTask("a.txt", 1, "", "", false)
	time.Sleep(2 * time.Millisecond)
	second := m.CreateTask("b.txt", 1, "", "", false)

	tasks := m.ListTasks()
	require.GreaterOrEqual(t, len(tasks), 2)
	var firstIdx, secondIdx int
	for i, tk := range tasks {
		if tk.TaskID == first.TaskID {
			firstIdx = i
		}
		if tk.TaskID == second.TaskID {
			secondIdx = i
		}
	}
	assert.Less(t, secondIdx, firstIdx, "newer task should sort before older one")
}

func TestCleanupOldTasksRemovesStaleEntries(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("old.txt", 1, "", "", false)
	tsk.mu.Lock()
	tsk.CreatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)
	tsk.mu.Unlock()

	m.CleanupOldTasks(7 * 24 * time.Hour)

	_, ok := m.GetTask(tsk.TaskID)
	assert.False(t, ok)
}

// stubCorrector lets the worker tests avoid a real provider adapter.
type stubCorrector struct {
	fn func(ctx context.Context, text string, progress engine.ProgressFunc) (engine.Result, error)
}

func (s *stubCorrector) Correct(ctx context.Context, text string, progress engine.ProgressFunc) (engine.Result, error) {
	return s.fn(ctx, text, progress)
}

func TestStartWorkerWholeDocumentCompletesTask(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("novel.txt", 10, "openai", "", false)

	corrector := &stubCorrector{fn: func(ctx context.Context, text string, progress engine.ProgressFunc) (engine.Result, error) {
		progress(1, 1)
		return engine.Result{Original: text, Corrected: text + "改", ChunksProcessed: 1, TotalChunks: 1}, nil
	}}

	m.StartWorker(context.Background(), tsk.TaskID, "原文", corrector, false)

	require.Eventually(t, func() bool {
		return tsk.Snapshot().Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	detail, err := m.GetResult(tsk.TaskID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.True(t, detail.HasChanges)
}

func TestStartWorkerChapterModeToleratesOneChapterFailing(t *testing.T) {
	m := newTestManager(t)
	tsk := m.CreateTask("novel.txt", 10, "openai", "", true)

	calls := 0
	corrector := &stubCorrector{fn: func(ctx context.Context, text string, progress engine.ProgressFunc) (engine.Result, error) {
		calls++
		if calls == 1 {
			return engine.Result{}, errors.New("provider unavailable")
		}
		return engine.Result{Original: text, Corrected: text + "改"}, nil
	}}

	text := "第一章\n甲内容。\n\n第二章\n乙内容。"
	m.StartWorker(context.Background(), tsk.TaskID, text, corrector, true)

	require.Eventually(t, func() bool {
		return tsk.Snapshot().Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	detail, err := m.GetResult(tsk.TaskID)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.True(t, detail.HasChanges)
	require.Len(t, detail.Chapters, 2)

	failed, err := m.GetChapter(tsk.TaskID, 1)
	require.NoError(t, err)
	require.NotNil(t, failed)
	assert.False(t, failed.HasChanges)
}
