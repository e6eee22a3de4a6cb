package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weimengliu/textproof/internal/diffservice"
)

func (a *App) handleCorrect(c *gin.Context) {
	var req CorrectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eng, err := a.resolveEngine(req.Provider, req.ModelName, req.ChunkSize, req.ChunkOverlap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := eng.Correct(c.Request.Context(), req.Text, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("校对失败: %s", err.Error())})
		return
	}

	hasChanges := diffservice.HasMeaningfulChanges(result.Original, result.Corrected)

	if _, err := a.Tasks.SaveManualResult("API输入", result.Original, result.Corrected, hasChanges, req.Provider, req.ModelName); err != nil && a.Log != nil {
		a.Log.WithError(err).Warn("httpapi: failed to auto-save correction result")
	}

	c.JSON(http.StatusOK, CorrectResponse{
		Original:        result.Original,
		Corrected:       result.Corrected,
		ChunksProcessed: result.ChunksProcessed,
		TotalChunks:     result.TotalChunks,
		HasChanges:      hasChanges,
		FailedChunks:    result.FailedChunks,
		HasFailures:     result.HasFailures,
		FailureDetails:  result.FailureDetails,
	})
}

func (a *App) handleDiff(c *gin.Context) {
	var req DiffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	corrected := req.Corrected
	if corrected == "" {
		eng, err := a.resolveEngine(req.Provider, req.ModelName, 0, 0)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := eng.Correct(c.Request.Context(), req.Text, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("校对失败: %s", err.Error())})
			return
		}
		corrected = result.Corrected
	}

	highlight := diffservice.HighlightDiff(req.Text, corrected)
	c.JSON(http.StatusOK, gin.H{
		"original_segments":  highlight.OriginalSegments,
		"corrected_segments": highlight.CorrectedSegments,
		"has_changes":        highlight.HasChanges,
	})
}
