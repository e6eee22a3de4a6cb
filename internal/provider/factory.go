package provider

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weimengliu/textproof/internal/config"
)

// New builds the Adapter for the given provider/model pair using the
// current settings snapshot. An empty model falls back to
// s.DefaultModel for openai, "deepseek-chat" for deepseek and "llama2"
// for ollama.
func New(providerName, model string, s config.Settings, log *logrus.Logger) (Adapter, error) {
	switch providerName {
	case "openai":
		if model == "" {
			model = s.DefaultModel
		}
		return &OpenAICompatible{
			ProviderName: "openai",
			APIKey:       s.OpenAIAPIKey,
			BaseURL:      s.OpenAIBaseURL,
			Model:        model,
			Log:          log,
			StripMarkers: false,
		}, nil
	case "deepseek":
		if model == "" {
			model = "deepseek-chat"
		}
		return &OpenAICompatible{
			ProviderName: "deepseek",
			APIKey:       s.DeepSeekAPIKey,
			BaseURL:      s.DeepSeekBaseURL,
			Model:        model,
			Log:          log,
			StripMarkers: true,
		}, nil
	case "ollama":
		if model == "" {
			model = "llama2"
		}
		return &Ollama{
			BaseURL: s.OllamaBaseURL,
			Model:   model,
			Log:     log,
		}, nil
	default:
		return nil, fmt.Errorf("provider: unsupported provider %q", providerName)
	}
}

// AvailableProviders lists the known provider names.
func AvailableProviders() []string {
	return []string{"openai", "deepseek", "ollama"}
}
