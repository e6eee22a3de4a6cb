package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weimengliu/textproof/internal/config"
)

type flakyAdapter struct {
	failUntil int
	calls     int
}

func (f *flakyAdapter) Name() string { return "flaky" }

func (f *flakyAdapter) Correct(ctx context.Context, text, prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return "", NewError(ErrServiceUnavailable, "still failing")
	}
	return "corrected: " + text, nil
}

func (f *flakyAdapter) HealthCheck(ctx context.Context) bool { return true }

func TestCorrectWithRetrySucceedsAfterKFailures(t *testing.T) {
	a := &flakyAdapter{failUntil: 2}
	result, err := CorrectWithRetry(context.Background(), a, "hello", "prompt", 5, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "corrected: hello", result)
	assert.Equal(t, 3, a.calls) // min(K+1, max_retries) = min(3, 5)
}

func TestCorrectWithRetryExhaustsAtMaxRetries(t *testing.T) {
	a := &flakyAdapter{failUntil: 10}
	_, err := CorrectWithRetry(context.Background(), a, "hello", "prompt", 3, 0, nil)
	require.Error(t, err)
	assert.Equal(t, 3, a.calls) // min(K+1, max_retries) = min(11, 3)
}

func TestClassifyHTTPError(t *testing.T) {
	assert.Equal(t, ErrConnection, ClassifyHTTPError("connection refused"))
	assert.Equal(t, ErrConnection, ClassifyHTTPError("dial tcp: timeout"))
	assert.Equal(t, ErrServiceUnavailable, ClassifyHTTPError("503 Service Unavailable"))
	assert.Equal(t, ErrAdapter, ClassifyHTTPError("unexpected token in JSON"))
}

func TestStripResponseMarkersLeadingMarker(t *testing.T) {
	got := stripResponseMarkers("校对后的文本：这是校对后的内容。")
	assert.Equal(t, "这是校对后的内容。", got)
}

func TestStripResponseMarkersNoMarker(t *testing.T) {
	got := stripResponseMarkers("这段文本没有标记。")
	assert.Equal(t, "这段文本没有标记。", got)
}

func TestNewUnsupportedProviderErrors(t *testing.T) {
	_, err := New("unknown", "", config.Settings{}, nil)
	assert.Error(t, err)
}
