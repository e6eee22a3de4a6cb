// Package provider implements the uniform adapter contract over the
// three supported correction backends: OpenAI, DeepSeek (both
// OpenAI-compatible chat completion APIs), and a local Ollama
// instance.
package provider

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Adapter is the contract every provider backend implements.
type Adapter interface {
	Name() string
	Correct(ctx context.Context, text, prompt string) (string, error)
	HealthCheck(ctx context.Context) bool
}

// CorrectWithRetry wraps Adapter.Correct with maxRetries attempts and a
// delay of retryDelay*attempt between them, returning the last error on
// exhaustion.
func CorrectWithRetry(ctx context.Context, a Adapter, text, prompt string, maxRetries int, retryDelay float64, log *logrus.Logger) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err := a.Correct(ctx, text, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if log != nil {
			log.WithFields(logrus.Fields{
				"adapter": a.Name(),
				"attempt": attempt + 1,
				"error":   err,
			}).Warn("correction attempt failed")
		}
		if attempt < maxRetries-1 {
			delay := time.Duration(retryDelay*float64(attempt+1)*1000) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return "", lastErr
}

// MarkerStripKeepRatio is the empirical threshold from the marker
// stripping heuristic, exposed as a var per the spec's call to make it
// an adjustable constant rather than a hardcoded literal.
var MarkerStripKeepRatio = 0.8

var stripMarkers = []string{
	"待校对文本：",
	"校对后的文本：",
	"校对后：",
	"精校后：",
	"结果：",
	"校对结果：",
}

// stripResponseMarkers removes leading and mid-body scaffolding the
// model sometimes echoes back despite the prompt asking it not to.
func stripResponseMarkers(text string) string {
	text = strings.TrimSpace(text)

	for _, marker := range stripMarkers {
		if strings.HasPrefix(text, marker) {
			text = strings.TrimSpace(text[len(marker):])
			break
		}
	}

	for _, marker := range stripMarkers {
		idx := strings.LastIndex(text, marker)
		if idx < 0 {
			continue
		}
		before := strings.TrimSpace(text[:idx])
		after := strings.TrimSpace(text[idx+len(marker):])
		if float64(utf8.RuneCountInString(after)) >= float64(utf8.RuneCountInString(before))*MarkerStripKeepRatio || utf8.RuneCountInString(before) < 50 {
			text = after
			break
		}
	}

	return strings.TrimSpace(text)
}
