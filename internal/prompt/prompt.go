// Package prompt manages the two correction prompt templates (general and
// Ollama-specific), loaded from configured file paths with fallback to
// built-in defaults, mutable at runtime, and optionally persisted back to
// a conventional file path. The live templates are kept in an in-process
// buntdb database so reads and reloads are cheap key lookups instead of
// ad-hoc map locking. There are no per-provider overrides.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/buntdb"
)

const (
	keyGeneral = "prompt:general"
	keyOllama  = "prompt:ollama"
)

// DefaultGeneral is the built-in general-purpose correction prompt.
const DefaultGeneral = `你是一名专业的文本校对员。你的任务是纠正文本中的错误，但必须严格遵守以下规则：

【核心原则】
1. 只纠正错误，不改变原文意思和风格
2. 只修正：错别字、病句、拼音或谐音转简体中文、明显错误的标点符号
3. 禁止任何文风、语气、措辞层面的优化
4. 禁止添加、删除或改写内容
5. 如果原文没有明显错误，必须保持完全不变

【输出要求】
直接输出校对后的文本，不要添加任何说明、注释或标记。如果原文没有错误，直接原样输出。

现在请校对以下文本：`

// DefaultOllama is the built-in prompt used for the Ollama per-sentence
// path; terser, since each call carries far less context.
const DefaultOllama = `你是文本校对员。只修正错别字、病句和明显的标点错误，不改变原意和风格。
直接输出校对后的文本，不要添加任何说明或标记：`

// Manager owns the two mutable prompt templates.
type Manager struct {
	db *buntdb.DB

	generalFile string
	ollamaFile  string
}

// NewManager loads prompts from generalFile/ollamaFile if present,
// falling back to the built-in defaults.
func NewManager(generalFile, ollamaFile string) (*Manager, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	m := &Manager{db: db, generalFile: generalFile, ollamaFile: ollamaFile}

	general := DefaultGeneral
	if generalFile != "" {
		if data, err := os.ReadFile(generalFile); err == nil {
			general = strings.TrimSpace(string(data))
		}
	}
	ollama := DefaultOllama
	if ollamaFile != "" {
		if data, err := os.ReadFile(ollamaFile); err == nil {
			ollama = strings.TrimSpace(string(data))
		}
	}

	err = db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(keyGeneral, general, nil); err != nil {
			return err
		}
		_, _, err := tx.Set(keyOllama, ollama, nil)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the backing database.
func (m *Manager) Close() error { return m.db.Close() }

// General returns the current general-purpose prompt.
func (m *Manager) General() string { return m.get(keyGeneral) }

// Ollama returns the current Ollama-specific prompt.
func (m *Manager) Ollama() string { return m.get(keyOllama) }

func (m *Manager) get(key string) string {
	var val string
	_ = m.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	return val
}

// SetGeneral replaces the general prompt, optionally persisting it to
// the conventional prompts/custom_prompt.txt path.
func (m *Manager) SetGeneral(text string, persistPath string) error {
	return m.set(keyGeneral, text, persistPath)
}

// SetOllama replaces the Ollama prompt.
func (m *Manager) SetOllama(text string, persistPath string) error {
	return m.set(keyOllama, text, persistPath)
}

func (m *Manager) set(key, text, persistPath string) error {
	err := m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, text, nil)
		return err
	})
	if err != nil {
		return err
	}
	if persistPath != "" {
		if err := os.MkdirAll(dirOf(persistPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(persistPath, []byte(text), 0o644); err != nil {
			return fmt.Errorf("prompt: persist %s: %w", persistPath, err)
		}
	}
	return nil
}

// Reload re-reads both template files from disk, ignoring missing files.
func (m *Manager) Reload() error {
	if m.generalFile != "" {
		if data, err := os.ReadFile(m.generalFile); err == nil {
			if err := m.set(keyGeneral, strings.TrimSpace(string(data)), ""); err != nil {
				return err
			}
		}
	}
	if m.ollamaFile != "" {
		if data, err := os.ReadFile(m.ollamaFile); err == nil {
			if err := m.set(keyOllama, strings.TrimSpace(string(data)), ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
