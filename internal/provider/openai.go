package provider

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/weimengliu/textproof/internal/httpclient"
)

// OpenAICompatible implements Adapter for any provider that speaks the
// OpenAI chat completions wire format, as OpenAI and DeepSeek both do.
type OpenAICompatible struct {
	ProviderName string // "openai" or "deepseek"
	APIKey       string
	BaseURL      string
	Model        string
	Log          *logrus.Logger

	// StripMarkers enables the Ollama/DeepSeek marker-stripping pass;
	// OpenAI responses are left untouched per the adapter contract.
	StripMarkers bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Name identifies the adapter for logging and cache keys.
func (o *OpenAICompatible) Name() string { return o.ProviderName }

// Correct sends a single chat completion request.
func (o *OpenAICompatible) Correct(ctx context.Context, text, prompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model: o.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: text},
		},
		Temperature: 0.0,
		MaxTokens:   utf8.RuneCountInString(text) + 500,
	}

	resp := httpclient.New(strings.TrimRight(o.BaseURL, "/")+"/chat/completions").
		SetHeader("Authorization", "Bearer "+o.APIKey).
		WithContext(ctx).
		Post(reqBody)

	if resp.Err != nil {
		return "", NewError(ClassifyHTTPError(resp.Err.Error()), fmt.Sprintf("%s API调用失败: %s", o.ProviderName, resp.Err.Error()))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed chatCompletionResponse
		msg := string(resp.Body)
		if err := resp.JSON(&parsed); err == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		kind := ClassifyHTTPError(fmt.Sprintf("%d %s", resp.StatusCode, msg))
		if kind == ErrAdapter {
			kind = ClassifyStatusCode(resp.StatusCode)
		}
		return "", NewError(kind, fmt.Sprintf("%s API调用失败: HTTP %d - %s", o.ProviderName, resp.StatusCode, msg))
	}

	var parsed chatCompletionResponse
	if err := resp.JSON(&parsed); err != nil {
		return "", NewError(ErrAdapter, fmt.Sprintf("%s API响应解析失败: %s", o.ProviderName, err.Error()))
	}
	if len(parsed.Choices) == 0 {
		return "", NewError(ErrAdapter, fmt.Sprintf("%s API返回空结果", o.ProviderName))
	}

	result := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if o.StripMarkers {
		result = stripResponseMarkers(result)
	}
	return result, nil
}

// HealthCheck performs a models-list call.
func (o *OpenAICompatible) HealthCheck(ctx context.Context) bool {
	resp := httpclient.New(strings.TrimRight(o.BaseURL, "/")+"/models").
		SetHeader("Authorization", "Bearer "+o.APIKey).
		WithContext(ctx).
		Get()
	return resp.Err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
}
