package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/weimengliu/textproof/internal/httpclient"
)

// Ollama talks to a local Ollama instance over its chat API.
type Ollama struct {
	BaseURL string
	Model   string
	Log     *logrus.Logger
}

type ollamaChatRequest struct {
	Model    string            `json:"model"`
	Messages []chatMessage     `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  ollamaChatOptions `json:"options"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
}

// Name identifies the adapter.
func (o *Ollama) Name() string { return "ollama" }

// Correct sends a single /api/chat request.
func (o *Ollama) Correct(ctx context.Context, text, prompt string) (string, error) {
	textLen := utf8.RuneCountInString(text)
	numPredict := 2 * textLen + 1000
	if numPredict < 2048 {
		numPredict = 2048
	}

	reqBody := ollamaChatRequest{
		Model: o.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: text},
		},
		Stream: false,
		Options: ollamaChatOptions{
			Temperature: 0.0,
			NumPredict:  numPredict,
		},
	}

	url := strings.TrimRight(o.BaseURL, "/") + "/api/chat"
	resp := httpclient.New(url).
		WithContext(ctx).
		WithTimeout(300 * time.Second).
		Post(reqBody)

	if resp.Err != nil {
		return "", NewError(ClassifyHTTPError(resp.Err.Error()), fmt.Sprintf("Ollama API调用失败: %s", resp.Err.Error()))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(resp.Body)
		if len(body) > 200 {
			body = body[:200]
		}
		return "", NewError(ErrAdapter, fmt.Sprintf("Ollama API返回错误状态码: %d - %s", resp.StatusCode, body))
	}

	var parsed ollamaChatResponse
	if err := resp.JSON(&parsed); err != nil {
		return "", NewError(ErrAdapter, fmt.Sprintf("Ollama API响应解析失败: %s", err.Error()))
	}

	result := stripResponseMarkers(strings.TrimSpace(parsed.Message.Content))
	if result == "" {
		return "", NewError(ErrAdapter, "Ollama 返回内容为空（可能为模型/服务暂时异常），将触发重试")
	}

	if o.Log != nil && utf8.RuneCountInString(result) < textLen/2 {
		o.Log.WithFields(logrus.Fields{
			"input_length":  textLen,
			"output_length": utf8.RuneCountInString(result),
		}).Warn("ollama response much shorter than input")
	}

	return result, nil
}

// HealthCheck probes /api/tags with a 5s timeout.
func (o *Ollama) HealthCheck(ctx context.Context) bool {
	resp := httpclient.New(strings.TrimRight(o.BaseURL, "/")+"/api/tags").
		WithContext(ctx).
		WithTimeout(5 * time.Second).
		Get()
	return resp.Err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
}
