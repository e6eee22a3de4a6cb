package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weimengliu/textproof/internal/provider"
)

func (a *App) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "textproofd",
		"status":  "running",
		"docs":    "/api",
	})
}

// HealthResponse mirrors the original's health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`
	Available bool   `json:"available"`
}

func (a *App) handleHealth(c *gin.Context) {
	settings := a.Config.Get()
	providerName := trimmedOrDefault(c.Query("provider"), settings.DefaultProvider)
	modelName := c.Query("model_name")

	adapter, err := a.Cache.GetOrCreate(providerName, modelName, func() (provider.Adapter, error) {
		return provider.New(providerName, modelName, settings, a.Log)
	})
	if err != nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "error", Provider: providerName, ModelName: modelName, Available: false})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	available := adapter.HealthCheck(ctx)

	status := "ok"
	if !available {
		status = "unavailable"
	}
	c.JSON(http.StatusOK, HealthResponse{Status: status, Provider: providerName, ModelName: modelName, Available: available})
}

func (a *App) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": a.Catalog.Names()})
}

type modelEntry struct {
	Name      string `json:"name"`
	Vision    bool   `json:"vision"`
	Streaming bool   `json:"streaming"`
	Reasoning bool   `json:"reasoning"`
}

func (a *App) handleModels(c *gin.Context) {
	providerName := c.Query("provider")
	if providerName == "" {
		providerName = a.Config.Get().DefaultProvider
	}

	configured := a.Config.Get().ModelsFor(providerName)
	info, known := a.Catalog.Providers[providerName]

	entries := make([]modelEntry, 0, len(configured))
	for _, name := range configured {
		entry := modelEntry{Name: name}
		if known {
			if caps, ok := info.Models[name]; ok {
				entry.Vision, entry.Streaming, entry.Reasoning = caps.Vision, caps.Streaming, caps.Reasoning
			}
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, gin.H{"provider": providerName, "models": entries})
}
