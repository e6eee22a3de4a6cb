package httpapi

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/weimengliu/textproof/internal/chunker"
)

// handleCorrectFile accepts a multipart .txt upload, rejects anything
// not encoded as UTF-8, detects chapter structure, and always hands
// the work to a background task (the caller polls GET /api/tasks/:id
// or watches the websocket stream).
func (a *App) handleCorrectFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}
	if strings.ToLower(filepath.Ext(fileHeader.Filename)) != ".txt" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "仅支持 .txt 文件"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if charset := mimetype.Detect(data).Charset(); charset != "" && !strings.EqualFold(charset, "utf-8") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "文件编码错误，请使用 UTF-8 编码保存后重新上传（检测到 " + charset + "）"})
		return
	}

	text := string(data)
	summary := chunker.DetectChapters(text)
	useChapters := summary.HasChapters && summary.ChapterCount > 1

	providerName := c.PostForm("provider")
	modelName := c.PostForm("model_name")

	eng, err := a.resolveEngine(providerName, modelName, 0, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tsk := a.Tasks.CreateTask(fileHeader.Filename, fileHeader.Size, providerName, modelName, useChapters)
	a.Tasks.StartWorker(context.Background(), tsk.TaskID, text, eng, useChapters)

	c.JSON(http.StatusOK, gin.H{
		"task_id":      tsk.TaskID,
		"status":       "processing",
		"use_chapters": useChapters,
		"chapter_count": func() int {
			if useChapters {
				return summary.ChapterCount
			}
			return 0
		}(),
	})
}
