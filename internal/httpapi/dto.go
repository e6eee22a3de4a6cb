package httpapi

import "github.com/weimengliu/textproof/internal/engine"

// CorrectRequest is the body of POST /api/correct.
type CorrectRequest struct {
	Text         string `json:"text" binding:"required"`
	Provider     string `json:"provider"`
	ModelName    string `json:"model_name"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// CorrectResponse mirrors CorrectionResponse.
type CorrectResponse struct {
	Original       string                  `json:"original"`
	Corrected      string                  `json:"corrected"`
	ChunksProcessed int                    `json:"chunks_processed"`
	TotalChunks    int                     `json:"total_chunks"`
	HasChanges     bool                    `json:"has_changes"`
	FailedChunks   int                     `json:"failed_chunks"`
	HasFailures    bool                    `json:"has_failures"`
	FailureDetails []engine.FailureDetail  `json:"failure_details,omitempty"`
}

// DiffRequest is the body of POST /api/diff.
type DiffRequest struct {
	Text      string `json:"text" binding:"required"`
	Corrected string `json:"corrected"`
	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`
}

// ManualResultRequest is the body of POST /api/results/manual.
type ManualResultRequest struct {
	Original  string `json:"original" binding:"required"`
	Corrected string `json:"corrected" binding:"required"`
	Filename  string `json:"filename"`
	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`
}

// PromptUpdateRequest is the body of POST /api/prompt. Target selects
// which template to replace ("general" or "ollama"); empty means
// "general".
type PromptUpdateRequest struct {
	Prompt  string `json:"prompt" binding:"required"`
	Target  string `json:"target"`
	Persist bool   `json:"persist"`
}

// ConfigUpdateRequest is the body of POST /api/config. Pointer fields
// distinguish "absent" from "explicit zero value", matching the
// original's `if "key" in request` field-presence checks.
type ConfigUpdateRequest struct {
	ChunkSize            *int     `json:"chunk_size"`
	ChunkOverlap         *int     `json:"chunk_overlap"`
	OllamaChunkSize      *int     `json:"ollama_chunk_size"`
	OllamaChunkOverlap   *int     `json:"ollama_chunk_overlap"`
	FastProviderMaxChars *int     `json:"fast_provider_max_chars"`
	MaxRetries           *int     `json:"max_retries"`
	RetryDelay           *float64 `json:"retry_delay"`
	DefaultProvider      *string  `json:"default_provider"`
	DefaultModel         *string  `json:"default_model"`
	OpenAIModels         *string  `json:"openai_models"`
	DeepSeekModels       *string  `json:"deepseek_models"`
	OllamaModels         *string  `json:"ollama_models"`
	Persist              bool     `json:"persist"`
}
