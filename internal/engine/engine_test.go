package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weimengliu/textproof/internal/provider"
)

// echoAdapter returns the input unchanged, used for S1/S3-style tests.
type echoAdapter struct {
	name string
}

func (a *echoAdapter) Name() string { return a.name }
func (a *echoAdapter) Correct(ctx context.Context, text, prompt string) (string, error) {
	return text, nil
}
func (a *echoAdapter) HealthCheck(ctx context.Context) bool { return true }

// scriptedAdapter fails according to a per-call-index function.
type scriptedAdapter struct {
	name    string
	calls   int
	failFn  func(callIndex int) error
}

func (a *scriptedAdapter) Name() string { return a.name }
func (a *scriptedAdapter) Correct(ctx context.Context, text, prompt string) (string, error) {
	idx := a.calls
	a.calls++
	if err := a.failFn(idx); err != nil {
		return "", err
	}
	return text, nil
}
func (a *scriptedAdapter) HealthCheck(ctx context.Context) bool { return true }

func defaultOpts() Options {
	return Options{
		ChunkSize:            2000,
		ChunkOverlap:         200,
		OllamaChunkSize:      1000,
		FastProviderMaxChars: 8000,
		MaxRetries:           3,
		RetryDelay:           0,
		UsePreCorrector:      true,
	}
}

func TestCorrectDirectModeNoChanges(t *testing.T) {
	a := &echoAdapter{name: "openai"}
	e := New(defaultOpts(), a, "prompt", nil, nil)

	result, err := e.Correct(context.Background(), "这是一段没有错误的文本。", nil)
	require.NoError(t, err)
	assert.Equal(t, result.Original, result.Corrected)
	assert.False(t, result.HasFailures)
}

func TestCorrectUsesChunkedModeWhenOverFastThreshold(t *testing.T) {
	a := &echoAdapter{name: "openai"}
	opts := defaultOpts()
	opts.FastProviderMaxChars = 100
	opts.ChunkSize = 50
	opts.ChunkOverlap = 10
	e := New(opts, a, "prompt", nil, nil)

	text := strings.Repeat("这是一段用于测试的中文句子。", 20) // > 200 chars
	result, err := e.Correct(context.Background(), text, nil)
	require.NoError(t, err)
	assert.Greater(t, result.TotalChunks, 1)
	assert.False(t, result.HasFailures)
}

func TestCorrectChunkedModeConnectionErrorStopsRemaining(t *testing.T) {
	a := &scriptedAdapter{
		name: "openai",
		failFn: func(i int) error {
			if i >= 2 {
				return provider.NewError(provider.ErrConnection, "connection refused")
			}
			return nil
		},
	}
	opts := defaultOpts()
	opts.FastProviderMaxChars = 0
	opts.ChunkSize = 20
	opts.ChunkOverlap = 5
	e := New(opts, a, "prompt", nil, nil)

	var paragraphs []string
	for i := 0; i < 10; i++ {
		paragraphs = append(paragraphs, strings.Repeat("字", 15))
	}
	text := strings.Join(paragraphs, "\n\n")

	result, err := e.Correct(context.Background(), text, nil)
	require.NoError(t, err)
	require.Greater(t, result.TotalChunks, 2)
	assert.Equal(t, 2, result.ChunksProcessed)
	assert.Equal(t, result.TotalChunks-2, result.FailedChunks)
	assert.True(t, result.HasFailures)
}

func TestCorrectPerSentenceModeAllFailuresRaisesFatal(t *testing.T) {
	a := &scriptedAdapter{
		name: "ollama",
		failFn: func(i int) error {
			return provider.NewError(provider.ErrServiceUnavailable, "unavailable")
		},
	}
	e := New(defaultOpts(), a, "prompt", nil, nil)

	text := "第一句话。\n第二句话。\n第三句话。"
	_, err := e.Correct(context.Background(), text, nil)
	require.Error(t, err)
	var fatal *FatalError
	assert.ErrorAs(t, err, &fatal)
}

func TestCorrectPerSentenceModePreservesLineStructureWhenUnchanged(t *testing.T) {
	a := &echoAdapter{name: "ollama"}
	e := New(defaultOpts(), a, "prompt", nil, nil)

	text := "第一行内容。\n第二行内容。\n\n第四行内容。"
	result, err := e.Correct(context.Background(), text, nil)
	require.NoError(t, err)
	assert.Equal(t, text, result.Corrected)
}

func TestCorrectPerSentenceModeProgressCallback(t *testing.T) {
	a := &echoAdapter{name: "ollama"}
	e := New(defaultOpts(), a, "prompt", nil, nil)

	var calls int
	progress := func(current, total int) { calls++ }

	text := "第一句。\n第二句。\n第三句。"
	_, err := e.Correct(context.Background(), text, progress)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
