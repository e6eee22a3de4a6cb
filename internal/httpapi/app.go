// Package httpapi is the HTTP surface of the correction pipeline: a
// gin router exposing correction, diff, configuration, task, and
// result endpoints over the engine/task/store layers beneath it.
package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/weimengliu/textproof/internal/adaptercache"
	"github.com/weimengliu/textproof/internal/catalog"
	"github.com/weimengliu/textproof/internal/config"
	"github.com/weimengliu/textproof/internal/engine"
	"github.com/weimengliu/textproof/internal/precorrector"
	"github.com/weimengliu/textproof/internal/prompt"
	"github.com/weimengliu/textproof/internal/provider"
	"github.com/weimengliu/textproof/internal/task"
)

// customPromptPath is where a persisted prompt override is written,
// matching the conventional relative path the original prompt endpoint
// used.
const customPromptPath = "./prompts/custom_prompt.txt"

// App bundles every collaborator the HTTP handlers need.
type App struct {
	Config    *config.Store
	Prompts   *prompt.Manager
	Cache     *adaptercache.Cache
	Tasks     *task.Manager
	Catalog   *catalog.Catalog
	Log       *logrus.Logger
	PreCorrector precorrector.PreCorrector
}

// NewApp wires a ready-to-serve App from its collaborators. pre may be
// nil, in which case precorrector.Noop{} is used.
func NewApp(cfg *config.Store, prompts *prompt.Manager, cache *adaptercache.Cache, tasks *task.Manager, cat *catalog.Catalog, pre precorrector.PreCorrector, log *logrus.Logger) *App {
	if pre == nil {
		pre = precorrector.Noop{}
	}
	return &App{Config: cfg, Prompts: prompts, Cache: cache, Tasks: tasks, Catalog: cat, PreCorrector: pre, Log: log}
}

// Router builds the gin engine with CORS and every route mounted.
func (a *App) Router(allows []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(a.requestLogger())
	r.Use(a.cors(allows))

	r.GET("/", a.handleRoot)
	r.GET("/health", a.handleHealth)

	api := r.Group("/api")
	api.GET("/providers", a.handleProviders)
	api.GET("/models", a.handleModels)

	api.POST("/correct", a.handleCorrect)
	api.POST("/correct/file", a.handleCorrectFile)
	api.POST("/diff", a.handleDiff)

	api.GET("/prompt", a.handleGetPrompt)
	api.POST("/prompt", a.handleSetPrompt)

	api.GET("/config", a.handleGetConfig)
	api.POST("/config", a.handleUpdateConfig)

	api.GET("/tasks", a.handleListTasks)
	api.GET("/tasks/:id", a.handleGetTask)
	api.GET("/tasks/:id/stream", a.handleTaskStream)

	api.GET("/results", a.handleListResults)
	api.GET("/results/:id", a.handleGetResult)
	api.GET("/results/:id/chapters/:index", a.handleGetChapter)
	api.DELETE("/results/:id", a.handleDeleteResult)
	api.POST("/results/manual", a.handleSaveManualResult)
	api.GET("/results/:id/download", a.handleDownload)

	return r
}

func (a *App) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if a.Log != nil {
			a.Log.WithFields(logrus.Fields{
				"method":   c.Request.Method,
				"path":     c.Request.URL.Path,
				"status":   c.Writer.Status(),
				"duration": time.Since(start).String(),
			}).Info("httpapi: request handled")
		}
	}
}

func (a *App) cors(allows []string) gin.HandlerFunc {
	allowAll := len(allows) == 0
	allowSet := make(map[string]bool, len(allows))
	for _, o := range allows {
		allowSet[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if allowSet[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// resolveEngine builds the Correction Engine for a provider/model pair
// using the current settings snapshot, an adapter pulled from (or
// added to) the cache, and the matching prompt template. chunkSize and
// chunkOverlap, when non-zero, override the configured chunking
// parameters for this one call only.
func (a *App) resolveEngine(providerName, modelName string, chunkSize, chunkOverlap int) (*engine.Engine, error) {
	settings := a.Config.Get()
	if providerName == "" {
		providerName = settings.DefaultProvider
	}

	adapter, err := a.Cache.GetOrCreate(providerName, modelName, func() (provider.Adapter, error) {
		return provider.New(providerName, modelName, settings, a.Log)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve adapter for %s:%s: %w", providerName, modelName, err)
	}

	promptText := a.Prompts.General()
	if providerName == "ollama" {
		promptText = a.Prompts.Ollama()
	}

	opts := engine.Options{
		ChunkSize:            settings.ChunkSize,
		ChunkOverlap:         settings.ChunkOverlap,
		OllamaChunkSize:      settings.OllamaChunkSize,
		FastProviderMaxChars: settings.FastProviderMaxChars,
		MaxRetries:           settings.MaxRetries,
		RetryDelay:           settings.RetryDelay,
		UsePreCorrector:      settings.OllamaUsePreCorrector,
	}
	if chunkSize > 0 {
		opts.ChunkSize = chunkSize
	}
	if chunkOverlap > 0 {
		opts.ChunkOverlap = chunkOverlap
	}

	return engine.New(opts, adapter, promptText, a.PreCorrector, a.Log), nil
}

func trimmedOrDefault(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}
