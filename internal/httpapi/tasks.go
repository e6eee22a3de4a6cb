package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/weimengliu/textproof/internal/task"
)

func (a *App) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": a.Tasks.ListTasks()})
}

func (a *App) handleGetTask(c *gin.Context) {
	id := c.Param("id")
	t, ok := a.Tasks.GetTask(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, t.Snapshot())
}

var taskStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Every origin is accepted: the CORS middleware only sets response
	// headers and does not reject the handshake. The stream carries no
	// credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleTaskStream pushes the task's snapshot over a websocket every
// tick until the task reaches a terminal status or the client
// disconnects. This replaces client-side polling of GET
// /api/tasks/:id for long-running chapter-mode corrections.
func (a *App) handleTaskStream(c *gin.Context) {
	id := c.Param("id")
	t, ok := a.Tasks.GetTask(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	conn, err := taskStreamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if a.Log != nil {
			a.Log.WithError(err).Warn("httpapi: task stream upgrade failed")
		}
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		snap := t.Snapshot()
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
		if snap.Status == task.StatusCompleted || snap.Status == task.StatusFailed {
			return
		}
		select {
		case <-ticker.C:
			continue
		case <-c.Request.Context().Done():
			return
		}
	}
}
