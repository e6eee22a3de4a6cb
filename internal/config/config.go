// Package config holds the process-wide, runtime-mutable settings for the
// correction pipeline: provider credentials, chunking parameters, retry
// policy, and prompt file locations. It mirrors the original Settings
// class's .env-backed configuration, but keeps comments and key order
// intact when the dotfile is rewritten.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Settings is the full set of mutable configuration values.
type Settings struct {
	DefaultProvider string
	DefaultModel    string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModels   string // comma-separated
	DeepSeekAPIKey string
	DeepSeekBaseURL string
	DeepSeekModels string
	OllamaBaseURL  string
	OllamaModels   string

	ChunkSize    int
	ChunkOverlap int

	OllamaChunkSize    int
	OllamaChunkOverlap int

	FastProviderMaxChars int

	MaxRetries int
	RetryDelay float64 // seconds

	PromptFile         string
	PromptFileOverride map[string]string // per-provider overrides

	OllamaUsePreCorrector bool
}

// Defaults returns the built-in defaults, matching
// original_source/backend/config.py.
func Defaults() Settings {
	return Settings{
		DefaultProvider:      "openai",
		DefaultModel:         "gpt-4-turbo-preview",
		OpenAIBaseURL:        "https://api.openai.com/v1",
		OpenAIModels:         "gpt-4-turbo-preview,gpt-4,gpt-3.5-turbo,gpt-4o-mini",
		DeepSeekBaseURL:      "https://api.deepseek.com/v1",
		DeepSeekModels:       "deepseek-chat,deepseek-coder",
		OllamaBaseURL:        "http://localhost:11434",
		OllamaModels:         "llama2,llama3,qwen,mistral",
		ChunkSize:            2000,
		ChunkOverlap:         200,
		OllamaChunkSize:      1000,
		OllamaChunkOverlap:   0,
		FastProviderMaxChars: 8000,
		MaxRetries:           3,
		RetryDelay:           1.0,
		PromptFileOverride:   map[string]string{},
		OllamaUsePreCorrector: true,
	}
}

// Validate enforces the invariants called out in spec.md §3.
func (s Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	if s.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be >= 0")
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("chunk_overlap must be < chunk_size")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if s.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be >= 0")
	}
	if s.FastProviderMaxChars <= 0 {
		return fmt.Errorf("fast_provider_max_chars must be > 0")
	}
	return nil
}

// ModelsFor returns the parsed model menu for a provider name.
func (s Settings) ModelsFor(provider string) []string {
	var raw string
	switch provider {
	case "openai":
		raw = s.OpenAIModels
	case "deepseek":
		raw = s.DeepSeekModels
	case "ollama":
		raw = s.OllamaModels
	}
	return splitTrim(raw, ",")
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InvalidateFunc is called after every successful mutation so that
// dependent caches (the provider:model adapter cache) can be flushed.
type InvalidateFunc func(previous, current Settings)

// Store is the process-wide, mutex-guarded settings holder.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	path     string
	log      *logrus.Logger
	onChange []InvalidateFunc
	watcher  *fsnotify.Watcher
}

// NewStore loads settings from path (if it exists) layered over the
// built-in defaults, matching the original's BaseSettings(env_file=".env").
func NewStore(path string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Store{settings: Defaults(), path: path, log: log}
	if path != "" {
		if err := s.loadFromFile(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	return s, nil
}

// OnChange registers a callback fired after every mutation, used by the
// adapter cache to invalidate itself (spec.md §5).
func (s *Store) OnChange(fn InvalidateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies mutator to a copy of the current settings, validates the
// result, commits it, and invokes registered invalidation callbacks. This
// is the single serialized mutation entry point spec.md §5 requires.
func (s *Store) Update(mutate func(*Settings), persist bool) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	mutate(&next)
	if err := next.Validate(); err != nil {
		return s.settings, err
	}

	previous := s.settings
	s.settings = next

	if persist && s.path != "" {
		if err := writeDotfile(s.path, next); err != nil {
			s.log.WithError(err).Warn("config: failed to persist dotfile")
		}
	}

	for _, fn := range s.onChange {
		fn(previous, next)
	}
	return next, nil
}

// WatchFile starts an fsnotify watch on the dotfile; on write events it
// reloads and re-validates, logging (not failing) on parse errors.
func (s *Store) WatchFile() error {
	if s.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.path); err != nil {
		// The file may not exist yet; that's fine, nothing to watch.
		w.Close()
		return nil
	}
	s.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if _, err := s.Update(func(next *Settings) {
						loaded, err := parseDotfile(s.path)
						if err != nil {
							s.log.WithError(err).Warn("config: parse after external edit failed")
							return
						}
						applyDotfile(next, loaded)
					}, false); err != nil {
						s.log.WithError(err).Warn("config: reload after external edit failed")
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.WithError(err).Warn("config: watcher error")
			}
		}
	}()
	return nil
}

// Close stops the dotfile watcher, if any.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Store) loadFromFile(path string) error {
	kv, err := parseDotfile(path)
	if err != nil {
		return err
	}
	applyDotfile(&s.settings, kv)
	return nil
}

// parseDotfile reads a KEY=VALUE file, ignoring blank lines and lines
// starting with '#'.
func parseDotfile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		val = strings.Trim(val, `"'`)
		out[strings.ToUpper(key)] = val
	}
	return out, scanner.Err()
}

func applyDotfile(s *Settings, kv map[string]string) {
	str := func(key string, dst *string) {
		if v, ok := kv[key]; ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := kv[key]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	fl := func(key string, dst *float64) {
		if v, ok := kv[key]; ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = n
			}
		}
	}
	bl := func(key string, dst *bool) {
		if v, ok := kv[key]; ok {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}

	str("DEFAULT_MODEL_PROVIDER", &s.DefaultProvider)
	str("DEFAULT_MODEL_NAME", &s.DefaultModel)
	str("OPENAI_API_KEY", &s.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &s.OpenAIBaseURL)
	str("OPENAI_MODELS", &s.OpenAIModels)
	str("DEEPSEEK_API_KEY", &s.DeepSeekAPIKey)
	str("DEEPSEEK_BASE_URL", &s.DeepSeekBaseURL)
	str("DEEPSEEK_MODELS", &s.DeepSeekModels)
	str("OLLAMA_BASE_URL", &s.OllamaBaseURL)
	str("OLLAMA_MODELS", &s.OllamaModels)
	num("CHUNK_SIZE", &s.ChunkSize)
	num("CHUNK_OVERLAP", &s.ChunkOverlap)
	num("OLLAMA_CHUNK_SIZE", &s.OllamaChunkSize)
	num("OLLAMA_CHUNK_OVERLAP", &s.OllamaChunkOverlap)
	num("FAST_PROVIDER_MAX_CHARS", &s.FastProviderMaxChars)
	num("MAX_RETRIES", &s.MaxRetries)
	fl("RETRY_DELAY", &s.RetryDelay)
	str("PROMPT_FILE", &s.PromptFile)
	bl("OLLAMA_USE_PRECORRECTOR", &s.OllamaUsePreCorrector)
}

// writeDotfile rewrites path, preserving comments and the order of keys
// that already exist, appending any new keys at the end.
func writeDotfile(path string, s Settings) error {
	kv := toDotfile(s)

	var lines []string
	seen := map[string]bool{}

	if existing, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(existing), "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				lines = append(lines, line)
				continue
			}
			idx := strings.Index(trimmed, "=")
			if idx < 0 {
				lines = append(lines, line)
				continue
			}
			key := strings.ToUpper(strings.TrimSpace(trimmed[:idx]))
			if v, ok := kv[key]; ok {
				lines = append(lines, fmt.Sprintf("%s=%s", key, v))
				seen[key] = true
			} else {
				lines = append(lines, line)
			}
		}
	}

	for _, key := range dotfileKeyOrder {
		if !seen[key] {
			lines = append(lines, fmt.Sprintf("%s=%s", key, kv[key]))
		}
	}

	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

var dotfileKeyOrder = []string{
	"DEFAULT_MODEL_PROVIDER", "DEFAULT_MODEL_NAME",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODELS",
	"DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "DEEPSEEK_MODELS",
	"OLLAMA_BASE_URL", "OLLAMA_MODELS",
	"CHUNK_SIZE", "CHUNK_OVERLAP",
	"OLLAMA_CHUNK_SIZE", "OLLAMA_CHUNK_OVERLAP",
	"FAST_PROVIDER_MAX_CHARS", "MAX_RETRIES", "RETRY_DELAY",
	"PROMPT_FILE", "OLLAMA_USE_PRECORRECTOR",
}

func toDotfile(s Settings) map[string]string {
	return map[string]string{
		"DEFAULT_MODEL_PROVIDER":  s.DefaultProvider,
		"DEFAULT_MODEL_NAME":      s.DefaultModel,
		"OPENAI_API_KEY":          s.OpenAIAPIKey,
		"OPENAI_BASE_URL":         s.OpenAIBaseURL,
		"OPENAI_MODELS":           s.OpenAIModels,
		"DEEPSEEK_API_KEY":        s.DeepSeekAPIKey,
		"DEEPSEEK_BASE_URL":       s.DeepSeekBaseURL,
		"DEEPSEEK_MODELS":         s.DeepSeekModels,
		"OLLAMA_BASE_URL":         s.OllamaBaseURL,
		"OLLAMA_MODELS":           s.OllamaModels,
		"CHUNK_SIZE":              strconv.Itoa(s.ChunkSize),
		"CHUNK_OVERLAP":           strconv.Itoa(s.ChunkOverlap),
		"OLLAMA_CHUNK_SIZE":       strconv.Itoa(s.OllamaChunkSize),
		"OLLAMA_CHUNK_OVERLAP":    strconv.Itoa(s.OllamaChunkOverlap),
		"FAST_PROVIDER_MAX_CHARS": strconv.Itoa(s.FastProviderMaxChars),
		"MAX_RETRIES":             strconv.Itoa(s.MaxRetries),
		"RETRY_DELAY":             strconv.FormatFloat(s.RetryDelay, 'f', -1, 64),
		"PROMPT_FILE":             s.PromptFile,
		"OLLAMA_USE_PRECORRECTOR": strconv.FormatBool(s.OllamaUsePreCorrector),
	}
}
