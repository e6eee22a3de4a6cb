// Package task implements the Task Manager: in-memory task bookkeeping
// for asynchronous file uploads, one goroutine per task, with
// best-effort persistence to the Durable Store on every transition.
package task

import (
	"sync"
	"time"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ChapterProgress tracks one chapter's processing state within a
// chapter-mode task.
type ChapterProgress struct {
	ChapterIndex int    `json:"chapter_index"`
	ChapterTitle string `json:"chapter_title"`
	Status       string `json:"status"`
	Current      int    `json:"current"`
	Total        int    `json:"total"`
}

// Task is the live, mutable record for one upload. Callers read it
// through Snapshot, never by touching fields directly.
type Task struct {
	mu sync.Mutex

	TaskID      string
	Filename    string
	FileSize    int64
	Status      Status
	Provider    string
	ModelName   string
	UseChapters bool

	ProgressCurrent int
	ProgressTotal   int
	ChapterProgress map[int]*ChapterProgress

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
}

// Snapshot is an immutable copy of a Task safe to hand to a JSON
// encoder or another goroutine.
type Snapshot struct {
	TaskID          string             `json:"task_id"`
	Filename        string             `json:"filename"`
	FileSize        int64              `json:"file_size"`
	Status          Status             `json:"status"`
	Provider        string             `json:"provider,omitempty"`
	ModelName       string             `json:"model_name,omitempty"`
	UseChapters     bool               `json:"use_chapters"`
	ProgressCurrent int                `json:"progress_current"`
	ProgressTotal   int                `json:"progress_total"`
	ChapterProgress []*ChapterProgress `json:"chapter_progress,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// Snapshot copies the task's current state under lock.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		TaskID:          t.TaskID,
		Filename:        t.Filename,
		FileSize:        t.FileSize,
		Status:          t.Status,
		Provider:        t.Provider,
		ModelName:       t.ModelName,
		UseChapters:     t.UseChapters,
		ProgressCurrent: t.ProgressCurrent,
		ProgressTotal:   t.ProgressTotal,
		CreatedAt:       t.CreatedAt,
		Error:           t.Error,
	}
	if !t.StartedAt.IsZero() {
		st := t.StartedAt
		s.StartedAt = &st
	}
	if !t.CompletedAt.IsZero() {
		ct := t.CompletedAt
		s.CompletedAt = &ct
	}
	for _, cp := range t.ChapterProgress {
		copyCP := *cp
		s.ChapterProgress = append(s.ChapterProgress, &copyCP)
	}
	return s
}
