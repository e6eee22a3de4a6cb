// Package store is the Durable Store: a single-file SQLite database
// holding Results, ChapterResults, and Task snapshots, with pagination,
// cascading deletes, and a one-time legacy results.json migration.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Store wraps a sqlx connection pool pointed at one SQLite file.
type Store struct {
	db  *sqlx.DB
	dir string
	log *logrus.Logger
}

// Open creates (if needed) the database file under dir, applies schema
// and pragmas, and runs the legacy JSON migration before returning.
func Open(dir string, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create cache dir: %w", err)
	}
	dbPath := filepath.Join(dir, "textproof.db")

	db, err := sqlx.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // mattn/go-sqlite3 serializes writes anyway; avoid SQLITE_BUSY churn

	s := &Store{db: db, dir: dir, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	s.migrateLegacyJSON()
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			result_id TEXT PRIMARY KEY,
			task_id TEXT,
			source TEXT NOT NULL,
			filename TEXT NOT NULL,
			provider TEXT,
			model_name TEXT,
			has_changes INTEGER NOT NULL,
			use_chapters INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			completed_at TEXT,
			original_text TEXT,
			corrected_text TEXT,
			original_length INTEGER NOT NULL DEFAULT 0,
			corrected_length INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS chapters (
			result_id TEXT NOT NULL,
			chapter_index INTEGER NOT NULL,
			chapter_title TEXT NOT NULL,
			has_changes INTEGER NOT NULL DEFAULT 0,
			original_text TEXT,
			corrected_text TEXT,
			original_length INTEGER NOT NULL DEFAULT 0,
			corrected_length INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (result_id, chapter_index),
			FOREIGN KEY (result_id) REFERENCES results(result_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			filename TEXT NOT NULL,
			file_size INTEGER NOT NULL DEFAULT 0,
			provider TEXT,
			model_name TEXT,
			use_chapters INTEGER NOT NULL DEFAULT 0,
			progress_current INTEGER NOT NULL DEFAULT 0,
			progress_total INTEGER NOT NULL DEFAULT 0,
			chapter_progress_json TEXT,
			error TEXT,
			created_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_completed_at ON results(completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_results_task_id ON results(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

// migrateLegacyJSON runs once at startup: if a sibling results.json
// exists and the results table is empty, each entry is upserted and
// the file renamed aside so it never runs again.
func (s *Store) migrateLegacyJSON() {
	legacyPath := filepath.Join(s.dir, "results.json")
	legacyBak := filepath.Join(s.dir, "results.json.bak")

	if _, err := os.Stat(legacyPath); err != nil {
		return
	}
	if _, err := os.Stat(legacyBak); err == nil {
		return
	}

	var count int
	if err := s.db.Get(&count, "SELECT COUNT(1) FROM results"); err != nil || count > 0 {
		return
	}

	data, err := os.ReadFile(legacyPath)
	if err != nil || !gjson.ValidBytes(data) {
		return
	}

	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		s.upsertResultFromLegacy(value)
		return true
	})

	if err := os.Rename(legacyPath, legacyBak); err != nil && s.log != nil {
		s.log.WithError(err).Warn("store: failed to rename legacy results.json")
	}
}

func (s *Store) upsertResultFromLegacy(v gjson.Result) {
	resultID := v.Get("result_id").String()
	if resultID == "" {
		return
	}
	chapters := v.Get("chapters")
	useChapters := v.Get("use_chapters").Bool() || chapters.IsArray()
	original := v.Get("original").String()
	corrected := v.Get("corrected").String()

	source := v.Get("source").String()
	if source == "" {
		if v.Get("task_id").Exists() {
			source = "task"
		} else {
			source = "manual_input"
		}
	}

	err := s.UpsertResult(Result{
		ResultID:    resultID,
		TaskID:      nullableString(v.Get("task_id")),
		Source:      source,
		Filename:    orDefault(v.Get("filename").String(), "未知文件"),
		Provider:    nullableString(v.Get("provider")),
		ModelName:   nullableString(v.Get("model_name")),
		HasChanges:  v.Get("has_changes").Bool(),
		UseChapters: useChapters,
		CreatedAt:   orDefault(v.Get("created_at").String(), v.Get("completed_at").String()),
		CompletedAt: nullableString(v.Get("completed_at")),
		Original:    original,
		Corrected:   corrected,
	})
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).Warn("store: legacy migration skipped a malformed row")
		}
		return
	}

	if chapters.IsArray() {
		var rows []ChapterResult
		chapters.ForEach(func(_, ch gjson.Result) bool {
			rows = append(rows, ChapterResult{
				ChapterIndex: int(ch.Get("chapter_index").Int()),
				ChapterTitle: ch.Get("chapter_title").String(),
				Original:     ch.Get("original").String(),
				Corrected:    ch.Get("corrected").String(),
			})
			return true
		})
		_ = s.ReplaceChapters(resultID, rows)
	}
}

func nullableString(r gjson.Result) sql.NullString {
	if !r.Exists() || r.String() == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: r.String(), Valid: true}
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
