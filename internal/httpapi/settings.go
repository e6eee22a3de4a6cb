package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weimengliu/textproof/internal/config"
)

func (a *App) handleGetConfig(c *gin.Context) {
	s := a.Config.Get()
	c.JSON(http.StatusOK, gin.H{
		"default_provider":        s.DefaultProvider,
		"default_model":           s.DefaultModel,
		"openai_base_url":         s.OpenAIBaseURL,
		"openai_models":           s.OpenAIModels,
		"openai_api_key":          maskSecret(s.OpenAIAPIKey),
		"deepseek_base_url":       s.DeepSeekBaseURL,
		"deepseek_models":         s.DeepSeekModels,
		"deepseek_api_key":        maskSecret(s.DeepSeekAPIKey),
		"ollama_base_url":         s.OllamaBaseURL,
		"ollama_models":           s.OllamaModels,
		"chunk_size":              s.ChunkSize,
		"chunk_overlap":           s.ChunkOverlap,
		"ollama_chunk_size":       s.OllamaChunkSize,
		"ollama_chunk_overlap":    s.OllamaChunkOverlap,
		"fast_provider_max_chars": s.FastProviderMaxChars,
		"max_retries":             s.MaxRetries,
		"retry_delay":             s.RetryDelay,
		"ollama_use_precorrector": s.OllamaUsePreCorrector,
	})
}

func (a *App) handleUpdateConfig(c *gin.Context) {
	var req ConfigUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := a.Config.Update(func(next *config.Settings) {
		if req.ChunkSize != nil {
			next.ChunkSize = *req.ChunkSize
		}
		if req.ChunkOverlap != nil {
			next.ChunkOverlap = *req.ChunkOverlap
		}
		if req.OllamaChunkSize != nil {
			next.OllamaChunkSize = *req.OllamaChunkSize
		}
		if req.OllamaChunkOverlap != nil {
			next.OllamaChunkOverlap = *req.OllamaChunkOverlap
		}
		if req.FastProviderMaxChars != nil {
			next.FastProviderMaxChars = *req.FastProviderMaxChars
		}
		if req.MaxRetries != nil {
			next.MaxRetries = *req.MaxRetries
		}
		if req.RetryDelay != nil {
			next.RetryDelay = *req.RetryDelay
		}
		if req.DefaultProvider != nil {
			next.DefaultProvider = *req.DefaultProvider
		}
		if req.DefaultModel != nil {
			next.DefaultModel = *req.DefaultModel
		}
		if req.OpenAIModels != nil {
			next.OpenAIModels = *req.OpenAIModels
		}
		if req.DeepSeekModels != nil {
			next.DeepSeekModels = *req.DeepSeekModels
		}
		if req.OllamaModels != nil {
			next.OllamaModels = *req.OllamaModels
		}
	}, req.Persist)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// a.Config.Update already fired the OnChange hooks that purge the
	// adapter cache (internal/adaptercache), so no explicit Purge call
	// is needed here.
	c.JSON(http.StatusOK, gin.H{"status": "ok", "chunk_size": updated.ChunkSize, "default_provider": updated.DefaultProvider})
}

func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
}
