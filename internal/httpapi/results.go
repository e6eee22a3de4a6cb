package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (a *App) handleListResults(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := a.Tasks.ListResults(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": page.Items,
		"total":   page.Total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

func (a *App) handleGetResult(c *gin.Context) {
	id := c.Param("id")
	detail, err := a.Tasks.GetResult(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}

	if detail.UseChapters {
		totalOriginal, totalCorrected := 0, 0
		for _, ch := range detail.Chapters {
			totalOriginal += ch.OriginalLength
			totalCorrected += ch.CorrectedLength
		}
		c.JSON(http.StatusOK, gin.H{
			"result_id":        detail.ResultID,
			"filename":         detail.Filename,
			"source":           detail.Source,
			"has_changes":      detail.HasChanges,
			"use_chapters":     true,
			"created_at":       detail.CreatedAt,
			"chapters":         detail.Chapters,
			"total_original":   totalOriginal,
			"total_corrected":  totalCorrected,
		})
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (a *App) handleGetChapter(c *gin.Context) {
	id := c.Param("id")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chapter index"})
		return
	}

	detail, err := a.Tasks.GetResult(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	if !detail.UseChapters {
		c.JSON(http.StatusBadRequest, gin.H{"error": "result is not chapter-based"})
		return
	}

	chapter, err := a.Tasks.GetChapter(id, index)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if chapter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chapter not found"})
		return
	}
	c.JSON(http.StatusOK, chapter)
}

func (a *App) handleDeleteResult(c *gin.Context) {
	id := c.Param("id")
	deleted, err := a.Tasks.DeleteResult(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (a *App) handleSaveManualResult(c *gin.Context) {
	var req ManualResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("输入框校对结果_%s", time.Now().UTC().Format("20060102150405"))
	}

	resultID, err := a.Tasks.SaveManualResult(filename, req.Original, req.Corrected, req.Original != req.Corrected, req.Provider, req.ModelName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result_id": resultID})
}

func (a *App) handleDownload(c *gin.Context) {
	id := c.Param("id")
	which := c.DefaultQuery("which", "corrected")
	if which != "original" && which != "corrected" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "which must be 'original' or 'corrected'"})
		return
	}

	if chapterParam := c.Query("chapter_index"); chapterParam != "" {
		index, err := strconv.Atoi(chapterParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chapter_index"})
			return
		}
		chapter, err := a.Tasks.GetChapter(id, index)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if chapter == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "chapter not found"})
			return
		}
		text := chapter.Original
		if which == "corrected" {
			text = chapter.Corrected
		}
		filename := fmt.Sprintf("%s_第%d章_%s.txt", id, index, which)
		streamText(c, filename, text)
		return
	}

	detail, err := a.Tasks.GetResult(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}

	var text string
	if which == "original" && detail.Original != nil {
		text = *detail.Original
	} else if which == "corrected" && detail.Corrected != nil {
		text = *detail.Corrected
	}
	filename := fmt.Sprintf("%s_%s.txt", id, which)
	streamText(c, filename, text)
}

func streamText(c *gin.Context, filename, text string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}
