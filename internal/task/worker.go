package task

import (
	"context"

	"github.com/weimengliu/textproof/internal/chunker"
	"github.com/weimengliu/textproof/internal/diffservice"
	"github.com/weimengliu/textproof/internal/engine"
)

// Corrector is the subset of *engine.Engine the worker needs, so tests
// can substitute a stub without constructing a real adapter.
type Corrector interface {
	Correct(ctx context.Context, text string, progress engine.ProgressFunc) (engine.Result, error)
}

// StartWorker launches one goroutine that drives a task to completion
// or failure: whole-document correction when useChapters is false,
// otherwise one engine.Correct call per chapter with per-chapter
// status and progress forwarded onto the task. Callers fire-and-forget
// this; final state is observable via GetTask/ListTasks.
func (m *Manager) StartWorker(ctx context.Context, taskID string, text string, eng Corrector, useChapters bool) {
	go func() {
		if !useChapters {
			m.runWholeDocument(ctx, taskID, text, eng)
			return
		}
		m.runChapters(ctx, taskID, text, eng)
	}()
}

func (m *Manager) runWholeDocument(ctx context.Context, taskID, text string, eng Corrector) {
	progress := func(current, total int) { m.UpdateProgress(taskID, current, total, nil, "") }

	result, err := eng.Correct(ctx, text, progress)
	if err != nil {
		m.FailTask(taskID, err.Error())
		return
	}

	hasChanges := diffservice.HasMeaningfulChanges(result.Original, result.Corrected)
	m.CompleteTask(taskID, result.Original, result.Corrected, hasChanges, nil)
}

func (m *Manager) runChapters(ctx context.Context, taskID, text string, eng Corrector) {
	chapters := chunker.SplitByChapters(text)

	var originals, corrected []string
	var outcomes []ChapterOutcome
	anyChanges := false

	for _, ch := range chapters {
		idx := ch.Index
		m.UpdateChapterStatus(taskID, idx, "processing", ch.Title)

		progress := func(current, total int) { m.UpdateProgress(taskID, current, total, &idx, ch.Title) }

		result, err := eng.Correct(ctx, ch.Content, progress)
		if err != nil {
			// One chapter failing outright (every unit in it failed) does
			// not abort the remaining chapters; it surfaces as that
			// chapter's own failed status with the original text kept.
			if m.log != nil {
				m.log.WithError(err).WithField("chapter", idx).Warn("task: chapter failed, continuing with remaining chapters")
			}
			m.UpdateChapterStatus(taskID, idx, "failed", ch.Title)
			originals = append(originals, titledChapter(ch.Title, ch.Content))
			corrected = append(corrected, titledChapter(ch.Title, ch.Content))
			outcomes = append(outcomes, ChapterOutcome{
				ChapterIndex: idx,
				ChapterTitle: ch.Title,
				Original:     ch.Content,
				Corrected:    ch.Content,
				HasChanges:   false,
			})
			continue
		}

		chapterChanged := diffservice.HasMeaningfulChanges(result.Original, result.Corrected)
		anyChanges = anyChanges || chapterChanged

		originals = append(originals, titledChapter(ch.Title, result.Original))
		corrected = append(corrected, titledChapter(ch.Title, result.Corrected))
		outcomes = append(outcomes, ChapterOutcome{
			ChapterIndex: idx,
			ChapterTitle: ch.Title,
			Original:     result.Original,
			Corrected:    result.Corrected,
			HasChanges:   chapterChanged,
		})

		m.UpdateChapterStatus(taskID, idx, "completed", ch.Title)
	}

	m.CompleteTask(taskID, joinChapters(originals), joinChapters(corrected), anyChanges, outcomes)
}

// titledChapter prefixes a chapter's text with its title, matching the
// concatenation format used when merging chapters back into one document.
func titledChapter(title, content string) string {
	if title == "" {
		return content
	}
	return title + "\n\n" + content
}

func joinChapters(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}
