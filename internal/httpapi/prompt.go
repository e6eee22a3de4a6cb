package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weimengliu/textproof/internal/config"
)

func (a *App) handleGetPrompt(c *gin.Context) {
	if reload, _ := strconv.ParseBool(c.Query("reload")); reload {
		if err := a.Prompts.Reload(); err != nil && a.Log != nil {
			a.Log.WithError(err).Warn("httpapi: prompt reload failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"general": a.Prompts.General(),
		"ollama":  a.Prompts.Ollama(),
	})
}

func (a *App) handleSetPrompt(c *gin.Context) {
	var req PromptUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	persistPath := ""
	if req.Persist {
		persistPath = customPromptPath
	}

	var err error
	switch req.Target {
	case "ollama":
		err = a.Prompts.SetOllama(req.Prompt, persistPath)
	default:
		err = a.Prompts.SetGeneral(req.Prompt, persistPath)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Persist && req.Target != "ollama" {
		if _, err := a.Config.Update(func(next *config.Settings) { next.PromptFile = persistPath }, true); err != nil && a.Log != nil {
			a.Log.WithError(err).Warn("httpapi: failed to record prompt file path in config")
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
