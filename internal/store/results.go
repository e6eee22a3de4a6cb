package store

import (
	"database/sql"
	"time"
	"unicode/utf8"
)

// Result mirrors the results table. TaskID/Provider/ModelName/CompletedAt
// are nullable columns, hence sql.NullString.
type Result struct {
	ResultID         string         `db:"result_id"`
	TaskID           sql.NullString `db:"task_id"`
	Source           string         `db:"source"`
	Filename         string         `db:"filename"`
	Provider         sql.NullString `db:"provider"`
	ModelName        sql.NullString `db:"model_name"`
	HasChanges       bool           `db:"has_changes"`
	UseChapters      bool           `db:"use_chapters"`
	CreatedAt        string         `db:"created_at"`
	CompletedAt      sql.NullString `db:"completed_at"`
	Original         string         `db:"original_text"`
	Corrected        string         `db:"corrected_text"`
	OriginalLength   int            `db:"original_length"`
	CorrectedLength  int            `db:"corrected_length"`
}

// ChapterResult mirrors one row of the chapters table.
type ChapterResult struct {
	ResultID        string `db:"result_id"`
	ChapterIndex    int    `db:"chapter_index"`
	ChapterTitle    string `db:"chapter_title"`
	HasChanges      bool   `db:"has_changes"`
	Original        string `db:"original_text"`
	Corrected       string `db:"corrected_text"`
	OriginalLength  int    `db:"original_length"`
	CorrectedLength int    `db:"corrected_length"`
}

// UpsertResult inserts or fully overwrites a result row by primary key.
func (s *Store) UpsertResult(r Result) error {
	if r.OriginalLength == 0 && r.Original != "" {
		r.OriginalLength = utf8.RuneCountInString(r.Original)
	}
	if r.CorrectedLength == 0 && r.Corrected != "" {
		r.CorrectedLength = utf8.RuneCountInString(r.Corrected)
	}
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.NamedExec(`
		INSERT INTO results (
			result_id, task_id, source, filename, provider, model_name,
			has_changes, use_chapters, created_at, completed_at,
			original_text, corrected_text, original_length, corrected_length
		) VALUES (
			:result_id, :task_id, :source, :filename, :provider, :model_name,
			:has_changes, :use_chapters, :created_at, :completed_at,
			:original_text, :corrected_text, :original_length, :corrected_length
		)
		ON CONFLICT(result_id) DO UPDATE SET
			task_id=excluded.task_id,
			source=excluded.source,
			filename=excluded.filename,
			provider=excluded.provider,
			model_name=excluded.model_name,
			has_changes=excluded.has_changes,
			use_chapters=excluded.use_chapters,
			created_at=excluded.created_at,
			completed_at=excluded.completed_at,
			original_text=excluded.original_text,
			corrected_text=excluded.corrected_text,
			original_length=excluded.original_length,
			corrected_length=excluded.corrected_length
	`, r)
	return err
}

// ResultSummary is the metadata-only row shape list_results returns.
type ResultSummary struct {
	ResultID        string         `db:"result_id" json:"result_id"`
	TaskID          sql.NullString `db:"task_id" json:"-"`
	Filename        string         `db:"filename" json:"filename"`
	Provider        sql.NullString `db:"provider" json:"-"`
	ModelName       sql.NullString `db:"model_name" json:"-"`
	Source          string         `db:"source" json:"source"`
	HasChanges      bool           `db:"has_changes" json:"has_changes"`
	UseChapters     bool           `db:"use_chapters" json:"use_chapters"`
	CreatedAt       string         `db:"created_at" json:"created_at"`
	CompletedAt     sql.NullString `db:"completed_at" json:"-"`
	OriginalLength  int            `db:"original_length" json:"original_length"`
	CorrectedLength int            `db:"corrected_length" json:"corrected_length"`
	ChapterCount    int            `db:"-" json:"chapter_count,omitempty"`
}

// Page is a generic paginated response envelope.
type Page struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ListResults returns a page of result summaries ordered newest-first
// by COALESCE(completed_at, created_at).
func (s *Store) ListResults(limit, offset int) (Page, error) {
	limit = clamp(limit, 1, 200)
	offset = max0(offset)

	var total int
	if err := s.db.Get(&total, "SELECT COUNT(1) FROM results"); err != nil {
		return Page{}, err
	}

	var items []ResultSummary
	err := s.db.Select(&items, `
		SELECT result_id, task_id, filename, provider, model_name, source,
			has_changes, use_chapters, created_at, completed_at,
			original_length, corrected_length
		FROM results
		ORDER BY COALESCE(completed_at, created_at) DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return Page{}, err
	}

	for i := range items {
		if items[i].UseChapters {
			var count int
			if err := s.db.Get(&count, "SELECT COUNT(1) FROM chapters WHERE result_id = ?", items[i].ResultID); err == nil {
				items[i].ChapterCount = count
			}
		}
	}

	return Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// ChapterMeta is the metadata-only shape for a chapter row, without text.
type ChapterMeta struct {
	ChapterIndex    int    `db:"chapter_index" json:"chapter_index"`
	ChapterTitle    string `db:"chapter_title" json:"chapter_title"`
	HasChanges      bool   `db:"has_changes" json:"has_changes"`
	OriginalLength  int    `db:"original_length" json:"original_length"`
	CorrectedLength int    `db:"corrected_length" json:"corrected_length"`
}

// ResultDetail is what get_result returns: summary plus optional full
// text and optional chapter metadata.
type ResultDetail struct {
	ResultSummary
	Original  *string       `json:"original,omitempty"`
	Corrected *string       `json:"corrected,omitempty"`
	Chapters  []ChapterMeta `json:"chapters,omitempty"`
}

// GetResult loads one result by id. includeText only applies when the
// result is not chapter-based; includeChapterMeta only applies when it is.
func (s *Store) GetResult(resultID string, includeText, includeChapterMeta bool) (*ResultDetail, error) {
	var r Result
	err := s.db.Get(&r, "SELECT * FROM results WHERE result_id = ?", resultID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	detail := &ResultDetail{ResultSummary: ResultSummary{
		ResultID:        r.ResultID,
		TaskID:          r.TaskID,
		Filename:        r.Filename,
		Provider:        r.Provider,
		ModelName:       r.ModelName,
		Source:          r.Source,
		HasChanges:      r.HasChanges,
		UseChapters:     r.UseChapters,
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
		OriginalLength:  r.OriginalLength,
		CorrectedLength: r.CorrectedLength,
	}}

	if includeText && !r.UseChapters {
		detail.Original = &r.Original
		detail.Corrected = &r.Corrected
	}

	if r.UseChapters && includeChapterMeta {
		var chapters []ChapterMeta
		err := s.db.Select(&chapters, `
			SELECT chapter_index, chapter_title, has_changes, original_length, corrected_length
			FROM chapters WHERE result_id = ? ORDER BY chapter_index ASC
		`, resultID)
		if err != nil {
			return nil, err
		}
		detail.Chapters = chapters
		detail.ChapterCount = len(chapters)
	}

	return detail, nil
}

// GetChapter returns one chapter's full text.
func (s *Store) GetChapter(resultID string, chapterIndex int) (*ChapterResult, error) {
	var ch ChapterResult
	err := s.db.Get(&ch, `
		SELECT result_id, chapter_index, chapter_title, has_changes, original_text, corrected_text
		FROM chapters WHERE result_id = ? AND chapter_index = ?
	`, resultID, chapterIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// DeleteResult removes a result row; chapters cascade via the foreign key.
func (s *Store) DeleteResult(resultID string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM results WHERE result_id = ?", resultID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReplaceChapters atomically deletes then reinserts a result's chapters.
func (s *Store) ReplaceChapters(resultID string, chapters []ChapterResult) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chapters WHERE result_id = ?", resultID); err != nil {
		return err
	}
	for _, ch := range chapters {
		ch.ResultID = resultID
		if ch.OriginalLength == 0 && ch.Original != "" {
			ch.OriginalLength = utf8.RuneCountInString(ch.Original)
		}
		if ch.CorrectedLength == 0 && ch.Corrected != "" {
			ch.CorrectedLength = utf8.RuneCountInString(ch.Corrected)
		}
		_, err := tx.NamedExec(`
			INSERT INTO chapters (
				result_id, chapter_index, chapter_title, has_changes,
				original_text, corrected_text, original_length, corrected_length
			) VALUES (
				:result_id, :chapter_index, :chapter_title, :has_changes,
				:original_text, :corrected_text, :original_length, :corrected_length
			)
		`, ch)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
