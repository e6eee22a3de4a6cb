package task

import (
	"database/sql"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/weimengliu/textproof/internal/store"
)

// Manager owns the live task table and the handle to the Durable
// Store used for best-effort persistence and the results surface.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*Task

	store *store.Store
	log   *logrus.Logger
	cron  *cron.Cron
}

// NewManager builds a Manager and starts the daily cleanup cron. The
// caller owns st's lifetime; Manager never closes it.
func NewManager(st *store.Store, log *logrus.Logger) *Manager {
	m := &Manager{
		tasks: make(map[string]*Task),
		store: st,
		log:   log,
		cron:  cron.New(),
	}
	_, err := m.cron.AddFunc("17 3 * * *", func() { m.CleanupOldTasks(7 * 24 * time.Hour) })
	if err != nil && log != nil {
		log.WithError(err).Warn("task: failed to schedule cleanup cron")
	}
	m.cron.Start()
	return m
}

// Stop halts the cleanup cron. Safe to call once during shutdown.
func (m *Manager) Stop() { m.cron.Stop() }

// CreateTask registers a new pending task and returns its id.
func (m *Manager) CreateTask(filename string, fileSize int64, provider, modelName string, useChapters bool) *Task {
	t := &Task{
		TaskID:      uuid.NewString(),
		Filename:    filename,
		FileSize:    fileSize,
		Status:      StatusPending,
		Provider:    provider,
		ModelName:   modelName,
		UseChapters: useChapters,
		CreatedAt:   time.Now().UTC(),
	}
	if useChapters {
		t.ChapterProgress = make(map[int]*ChapterProgress)
	}

	m.mu.Lock()
	m.tasks[t.TaskID] = t
	m.mu.Unlock()

	m.persist(t)
	return t
}

// GetTask looks up a live task by id.
func (m *Manager) GetTask(taskID string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[taskID]
	return t, ok
}

// UpdateProgress records overall progress and, for chapter-mode tasks,
// the issuing chapter's sub-progress. The first call transitions a
// pending task to processing.
func (m *Manager) UpdateProgress(taskID string, current, total int, chapterIndex *int, chapterTitle string) {
	t, ok := m.GetTask(taskID)
	if !ok {
		return
	}

	t.mu.Lock()
	t.ProgressCurrent = current
	t.ProgressTotal = total

	if chapterIndex != nil && t.UseChapters {
		cp, exists := t.ChapterProgress[*chapterIndex]
		if !exists {
			cp = &ChapterProgress{ChapterIndex: *chapterIndex, ChapterTitle: defaultTitle(chapterTitle, *chapterIndex), Status: "processing"}
			t.ChapterProgress[*chapterIndex] = cp
		}
		cp.Current = current
		cp.Total = total
	}

	if t.Status == StatusPending {
		t.Status = StatusProcessing
		t.StartedAt = time.Now().UTC()
	}
	t.mu.Unlock()

	m.persist(t)
}

// UpdateChapterStatus sets one chapter's status, creating its entry if
// this is the first event seen for that chapter.
func (m *Manager) UpdateChapterStatus(taskID string, chapterIndex int, status, chapterTitle string) {
	t, ok := m.GetTask(taskID)
	if !ok || !t.UseChapters {
		return
	}

	t.mu.Lock()
	cp, exists := t.ChapterProgress[chapterIndex]
	if !exists {
		t.ChapterProgress[chapterIndex] = &ChapterProgress{
			ChapterIndex: chapterIndex,
			ChapterTitle: defaultTitle(chapterTitle, chapterIndex),
			Status:       status,
		}
	} else {
		cp.Status = status
		if chapterTitle != "" {
			cp.ChapterTitle = chapterTitle
		}
	}
	t.mu.Unlock()

	m.persist(t)
}

// ChapterOutcome is one chapter's final correction output, passed to
// CompleteTask for chapter-mode tasks.
type ChapterOutcome struct {
	ChapterIndex int
	ChapterTitle string
	Original     string
	Corrected    string
	HasChanges   bool
}

// CompleteTask marks the task completed and writes the final result
// (and, for chapter-mode tasks, the per-chapter rows) to the store.
func (m *Manager) CompleteTask(taskID, original, corrected string, hasChanges bool, chapters []ChapterOutcome) {
	t, ok := m.GetTask(taskID)
	if !ok {
		return
	}

	t.mu.Lock()
	t.Status = StatusCompleted
	t.CompletedAt = time.Now().UTC()
	t.ProgressCurrent = t.ProgressTotal
	snapshot := Task{
		Filename: t.Filename, Provider: t.Provider, ModelName: t.ModelName,
		CreatedAt: t.CreatedAt, CompletedAt: t.CompletedAt,
	}
	t.mu.Unlock()

	m.persist(t)

	useChapters := len(chapters) > 0
	err := m.store.UpsertResult(store.Result{
		ResultID:    taskID,
		TaskID:      sql.NullString{String: taskID, Valid: true},
		Source:      "task",
		Filename:    snapshot.Filename,
		Provider:    nullable(snapshot.Provider),
		ModelName:   nullable(snapshot.ModelName),
		HasChanges:  hasChanges,
		UseChapters: useChapters,
		CreatedAt:   snapshot.CreatedAt.Format(time.RFC3339),
		CompletedAt: sql.NullString{String: snapshot.CompletedAt.Format(time.RFC3339), Valid: true},
		Original:    original,
		Corrected:   corrected,
	})
	if err != nil {
		m.warn(err, "task: failed to persist completed result")
		return
	}

	if useChapters {
		rows := make([]store.ChapterResult, 0, len(chapters))
		for _, c := range chapters {
			rows = append(rows, store.ChapterResult{
				ChapterIndex: c.ChapterIndex,
				ChapterTitle: c.ChapterTitle,
				Original:     c.Original,
				Corrected:    c.Corrected,
				HasChanges:   c.HasChanges,
			})
		}
		if err := m.store.ReplaceChapters(taskID, rows); err != nil {
			m.warn(err, "task: failed to persist chapter results")
		}
	}
}

// SaveManualResult persists a one-off correction (direct textarea
// input, not an uploaded/tracked task) and returns its result id.
func (m *Manager) SaveManualResult(filename, original, corrected string, hasChanges bool, provider, modelName string) (string, error) {
	resultID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	err := m.store.UpsertResult(store.Result{
		ResultID:    resultID,
		Source:      "manual_input",
		Filename:    filename,
		Provider:    nullable(provider),
		ModelName:   nullable(modelName),
		HasChanges:  hasChanges,
		UseChapters: false,
		CreatedAt:   now,
		CompletedAt: sql.NullString{String: now, Valid: true},
		Original:    original,
		Corrected:   corrected,
	})
	return resultID, err
}

// FailTask marks the task failed with the given message.
func (m *Manager) FailTask(taskID, errMsg string) {
	t, ok := m.GetTask(taskID)
	if !ok {
		return
	}
	t.mu.Lock()
	t.Status = StatusFailed
	t.CompletedAt = time.Now().UTC()
	t.Error = errMsg
	t.mu.Unlock()

	m.persist(t)
}

// ListTasks merges the live in-memory table with persisted history,
// live entries winning on id collision, newest-created first.
func (m *Manager) ListTasks() []Snapshot {
	m.mu.RLock()
	live := make(map[string]Snapshot, len(m.tasks))
	for id, t := range m.tasks {
		live[id] = t.Snapshot()
	}
	m.mu.RUnlock()

	merged := make(map[string]Snapshot, len(live))
	if page, err := m.store.ListTasks(500, 0); err == nil {
		if rows, ok := page.Items.([]store.Task); ok {
			for _, r := range rows {
				merged[r.TaskID] = snapshotFromStoreTask(r)
			}
		}
	} else {
		m.warn(err, "task: failed to load persisted task history")
	}
	for id, s := range live {
		merged[id] = s
	}

	out := make([]Snapshot, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ListResults, GetResult, GetChapter, and DeleteResult delegate
// straight through to the store; Manager adds no behavior beyond the
// fixed include_text/include_chapter_meta defaults the original
// endpoints used.
func (m *Manager) ListResults(limit, offset int) (store.Page, error) {
	return m.store.ListResults(limit, offset)
}

func (m *Manager) GetResult(resultID string) (*store.ResultDetail, error) {
	return m.store.GetResult(resultID, true, true)
}

func (m *Manager) GetChapter(resultID string, chapterIndex int) (*store.ChapterResult, error) {
	return m.store.GetChapter(resultID, chapterIndex)
}

func (m *Manager) DeleteResult(resultID string) (bool, error) {
	return m.store.DeleteResult(resultID)
}

// CleanupOldTasks drops in-memory tasks created before now-maxAge.
// Persisted history in the store is untouched.
func (m *Manager) CleanupOldTasks(maxAge time.Duration) {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	for id, t := range m.tasks {
		t.mu.Lock()
		created := t.CreatedAt
		t.mu.Unlock()
		if created.Before(cutoff) {
			delete(m.tasks, id)
		}
	}
	m.mu.Unlock()
}

func (m *Manager) persist(t *Task) {
	s := t.Snapshot()
	dbTask := store.Task{
		TaskID:          s.TaskID,
		Status:          string(s.Status),
		Filename:        s.Filename,
		FileSize:        s.FileSize,
		Provider:        nullable(s.Provider),
		ModelName:       nullable(s.ModelName),
		UseChapters:     s.UseChapters,
		ProgressCurrent: s.ProgressCurrent,
		ProgressTotal:   s.ProgressTotal,
		Error:           nullable(s.Error),
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
	}
	if s.StartedAt != nil {
		dbTask.StartedAt = sql.NullString{String: s.StartedAt.Format(time.RFC3339), Valid: true}
	}
	if s.CompletedAt != nil {
		dbTask.CompletedAt = sql.NullString{String: s.CompletedAt.Format(time.RFC3339), Valid: true}
	}
	for _, cp := range s.ChapterProgress {
		dbTask.ChapterProgress = append(dbTask.ChapterProgress, store.ChapterProgressEntry{
			ChapterIndex: cp.ChapterIndex,
			Title:        cp.ChapterTitle,
			Status:       cp.Status,
		})
	}

	if err := m.store.UpsertTask(dbTask); err != nil {
		m.warn(err, "task: failed to persist task state")
	}
}

func (m *Manager) warn(err error, msg string) {
	if m.log != nil {
		m.log.WithError(err).Warn(msg)
	}
}

func nullable(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func defaultTitle(title string, index int) string {
	if title != "" {
		return title
	}
	return chapterFallbackTitle(index)
}

func snapshotFromStoreTask(r store.Task) Snapshot {
	s := Snapshot{
		TaskID:          r.TaskID,
		Filename:        r.Filename,
		FileSize:        r.FileSize,
		Status:          Status(r.Status),
		UseChapters:     r.UseChapters,
		ProgressCurrent: r.ProgressCurrent,
		ProgressTotal:   r.ProgressTotal,
	}
	if r.Provider.Valid {
		s.Provider = r.Provider.String
	}
	if r.ModelName.Valid {
		s.ModelName = r.ModelName.String
	}
	if r.Error.Valid {
		s.Error = r.Error.String
	}
	if created, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		s.CreatedAt = created
	}
	if r.StartedAt.Valid {
		if t, err := time.Parse(time.RFC3339, r.StartedAt.String); err == nil {
			s.StartedAt = &t
		}
	}
	if r.CompletedAt.Valid {
		if t, err := time.Parse(time.RFC3339, r.CompletedAt.String); err == nil {
			s.CompletedAt = &t
		}
	}
	for _, cp := range r.ChapterProgress {
		s.ChapterProgress = append(s.ChapterProgress, &ChapterProgress{
			ChapterIndex: cp.ChapterIndex,
			ChapterTitle: cp.Title,
			Status:       cp.Status,
		})
	}
	return s
}

func chapterFallbackTitle(index int) string {
	return "第" + strconv.Itoa(index) + "章"
}
