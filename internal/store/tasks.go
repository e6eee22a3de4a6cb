package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Task mirrors the tasks table. ChapterProgress is stored as a JSON
// column and (de)serialized on each read/write, matching the Python
// store's json.dumps/json.loads round trip.
type Task struct {
	TaskID           string         `db:"task_id" json:"task_id"`
	Status           string         `db:"status" json:"status"`
	Filename         string         `db:"filename" json:"filename"`
	FileSize         int64          `db:"file_size" json:"file_size"`
	Provider         sql.NullString `db:"provider" json:"-"`
	ModelName        sql.NullString `db:"model_name" json:"-"`
	UseChapters      bool           `db:"use_chapters" json:"use_chapters"`
	ProgressCurrent  int            `db:"progress_current" json:"progress_current"`
	ProgressTotal    int            `db:"progress_total" json:"progress_total"`
	ChapterProgressJ sql.NullString `db:"chapter_progress_json" json:"-"`
	Error            sql.NullString `db:"error" json:"-"`
	CreatedAt        string         `db:"created_at" json:"created_at"`
	StartedAt        sql.NullString `db:"started_at" json:"-"`
	CompletedAt      sql.NullString `db:"completed_at" json:"-"`

	ChapterProgress []ChapterProgressEntry `db:"-" json:"chapter_progress,omitempty"`
}

// ChapterProgressEntry is one chapter's processing state within a task.
type ChapterProgressEntry struct {
	ChapterIndex int    `json:"chapter_index"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// UpsertTask inserts or fully overwrites a task row by primary key.
func (s *Store) UpsertTask(t Task) error {
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if len(t.ChapterProgress) > 0 {
		b, err := json.Marshal(t.ChapterProgress)
		if err != nil {
			return err
		}
		t.ChapterProgressJ = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.NamedExec(`
		INSERT INTO tasks (
			task_id, status, filename, file_size, provider, model_name,
			use_chapters, progress_current, progress_total, chapter_progress_json,
			error, created_at, started_at, completed_at
		) VALUES (
			:task_id, :status, :filename, :file_size, :provider, :model_name,
			:use_chapters, :progress_current, :progress_total, :chapter_progress_json,
			:error, :created_at, :started_at, :completed_at
		)
		ON CONFLICT(task_id) DO UPDATE SET
			status=excluded.status,
			filename=excluded.filename,
			file_size=excluded.file_size,
			provider=excluded.provider,
			model_name=excluded.model_name,
			use_chapters=excluded.use_chapters,
			progress_current=excluded.progress_current,
			progress_total=excluded.progress_total,
			chapter_progress_json=excluded.chapter_progress_json,
			error=excluded.error,
			created_at=excluded.created_at,
			started_at=excluded.started_at,
			completed_at=excluded.completed_at
	`, t)
	return err
}

// ListTasks returns a page of tasks, newest-first by created_at.
func (s *Store) ListTasks(limit, offset int) (Page, error) {
	limit = clamp(limit, 1, 500)
	offset = max0(offset)

	var total int
	if err := s.db.Get(&total, "SELECT COUNT(1) FROM tasks"); err != nil {
		return Page{}, err
	}

	var rows []Task
	err := s.db.Select(&rows, `
		SELECT * FROM tasks ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return Page{}, err
	}
	for i := range rows {
		rows[i].decodeChapterProgress()
	}

	return Page{Items: rows, Total: total, Limit: limit, Offset: offset}, nil
}

// GetTask loads one task by id.
func (s *Store) GetTask(taskID string) (*Task, bool, error) {
	var t Task
	err := s.db.Get(&t, "SELECT * FROM tasks WHERE task_id = ?", taskID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	t.decodeChapterProgress()
	return &t, true, nil
}

func (t *Task) decodeChapterProgress() {
	if !t.ChapterProgressJ.Valid || t.ChapterProgressJ.String == "" {
		return
	}
	var entries []ChapterProgressEntry
	if err := json.Unmarshal([]byte(t.ChapterProgressJ.String), &entries); err == nil {
		t.ChapterProgress = entries
	}
}
