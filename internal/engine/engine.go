// Package engine implements the Correction Engine: strategy selection
// between per-sentence, direct, and chunked correction, retry and
// circuit-breaker handling, and partial-failure bookkeeping.
package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	goerrors "github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/weimengliu/textproof/internal/chunker"
	"github.com/weimengliu/textproof/internal/provider"
	"github.com/weimengliu/textproof/internal/reassembler"
)

// FatalError is raised when every processed unit failed; it is the one
// error the engine lets propagate out of Correct.
type FatalError struct {
	*goerrors.Error
}

// PreCorrector is an optional pre-processing hook run on each sentence
// before it reaches the adapter in per-sentence mode. Failures bypass
// the pre-corrector silently — the original sentence is sent as-is.
type PreCorrector interface {
	Correct(ctx context.Context, sentence string) (string, error)
}

// Options configures one Engine instance. All fields mirror the
// corresponding Settings fields so the engine has no hidden dependency
// on the config package's mutation machinery.
type Options struct {
	ChunkSize            int
	ChunkOverlap         int
	OllamaChunkSize      int
	FastProviderMaxChars int
	MaxRetries           int
	RetryDelay           float64
	UsePreCorrector      bool
}

// Engine runs the correction strategies against a resolved Adapter.
type Engine struct {
	opts         Options
	adapter      provider.Adapter
	prompt       string
	preCorrector PreCorrector
	log          *logrus.Logger
}

// New builds an Engine bound to a single adapter/prompt pair for the
// duration of one Correct call; callers construct a fresh Engine (or
// reuse one) per task.
func New(opts Options, a provider.Adapter, prompt string, preCorrector PreCorrector, log *logrus.Logger) *Engine {
	return &Engine{opts: opts, adapter: a, prompt: prompt, preCorrector: preCorrector, log: log}
}

// Correct runs the appropriate strategy for the bound adapter and
// returns the merged result. progress may be nil.
func (e *Engine) Correct(ctx context.Context, text string, progress ProgressFunc) (Result, error) {
	if e.adapter.Name() == "ollama" {
		return e.correctPerSentence(ctx, text, progress)
	}

	if utf8.RuneCountInString(text) <= e.opts.FastProviderMaxChars {
		result, err := e.correctDirect(ctx, text)
		if err == nil {
			if progress != nil {
				progress(1, 1)
			}
			return result, nil
		}
		if e.log != nil {
			e.log.WithError(err).Warn("direct mode failed, falling back to chunked mode")
		}
	}

	return e.correctChunked(ctx, text, progress)
}

func (e *Engine) correctDirect(ctx context.Context, text string) (Result, error) {
	corrected, err := provider.CorrectWithRetry(ctx, e.adapter, text, e.prompt, e.opts.MaxRetries, e.opts.RetryDelay, e.log)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Original:        text,
		Corrected:       corrected,
		ChunksProcessed: 1,
		TotalChunks:     1,
	}, nil
}

func (e *Engine) correctChunked(ctx context.Context, text string, progress ProgressFunc) (Result, error) {
	splitter, err := chunker.NewSplitter(e.opts.ChunkSize, e.opts.ChunkOverlap)
	if err != nil {
		return Result{}, err
	}
	chunks := splitter.Split(text)
	if len(chunks) == 0 {
		return Result{Original: text, Corrected: text}, nil
	}

	outputs, processed, failedDetails := e.runUnits(ctx, chunks, progress, "因连接错误跳过处理", "因连续失败跳过处理")

	if processed == 0 {
		return Result{}, e.fatalError(failedDetails)
	}

	r := reassembler.New(e.opts.ChunkOverlap)
	merged := r.Merge(outputs)

	return Result{
		Original:        text,
		Corrected:       merged,
		ChunksProcessed: processed,
		TotalChunks:     len(chunks),
		FailedChunks:    len(failedDetails),
		HasFailures:     len(failedDetails) > 0,
		FailureDetails:  failedDetails,
	}, nil
}

func (e *Engine) correctPerSentence(ctx context.Context, text string, progress ProgressFunc) (Result, error) {
	units := splitIntoSentenceUnits(text, e.opts.OllamaChunkSize)

	var scheduled []string
	scheduledIdx := make([]int, 0, len(units))
	for i, u := range units {
		if u.blank {
			continue
		}
		scheduledIdx = append(scheduledIdx, i)
		scheduled = append(scheduled, e.applyPreCorrector(ctx, u.text))
	}

	outputs, processed, failedDetails := e.runUnits(ctx, scheduled, progress, "因连接错误跳过处理", "因连续失败跳过处理")

	if processed == 0 && len(scheduled) > 0 {
		return Result{}, e.fatalError(failedDetails)
	}

	var sb strings.Builder
	outIdx := 0
	for i, u := range units {
		isScheduled := false
		for _, si := range scheduledIdx {
			if si == i {
				isScheduled = true
				break
			}
		}
		if isScheduled {
			sb.WriteString(outputs[outIdx])
			outIdx++
		} else {
			sb.WriteString(u.text)
		}
		sb.WriteString(u.trailer)
	}

	return Result{
		Original:        text,
		Corrected:       sb.String(),
		ChunksProcessed: processed,
		TotalChunks:     len(scheduled),
		FailedChunks:    len(failedDetails),
		HasFailures:     len(failedDetails) > 0,
		FailureDetails:  failedDetails,
	}, nil
}

func (e *Engine) applyPreCorrector(ctx context.Context, sentence string) string {
	if !e.opts.UsePreCorrector || e.preCorrector == nil {
		return sentence
	}
	result, err := e.preCorrector.Correct(ctx, sentence)
	if err != nil {
		return sentence
	}
	return result
}

// runUnits is the shared retry/circuit-breaker loop for both chunked
// and per-sentence modes. connMsg/csMsg are the Chinese annotations
// recorded as the failure error of every unit skipped when the loop
// stops early; those units keep their original text.
func (e *Engine) runUnits(ctx context.Context, units []string, progress ProgressFunc, connMsg, csMsg string) ([]string, int, []FailureDetail) {
	outputs := make([]string, len(units))
	var failures []FailureDetail
	processed := 0
	consecutiveFailures := 0
	stopped := false

	for i, unit := range units {
		if stopped {
			outputs[i] = unit
			continue
		}

		corrected, err := provider.CorrectWithRetry(ctx, e.adapter, unit, e.prompt, e.opts.MaxRetries, e.opts.RetryDelay, e.log)
		if err != nil {
			failures = append(failures, FailureDetail{ChunkIndex: i, Error: err.Error()})

			isConnection := false
			if ce, ok := err.(*provider.Error); ok {
				isConnection = ce.Kind == provider.ErrConnection
			}

			if isConnection {
				outputs[i] = unit
				stopped = true
				for j := i + 1; j < len(units); j++ {
					outputs[j] = units[j]
					failures = append(failures, FailureDetail{ChunkIndex: j, Error: connMsg})
				}
				if progress != nil {
					progress(i+1, len(units))
				}
				continue
			}

			consecutiveFailures++
			outputs[i] = unit
			if consecutiveFailures >= 3 {
				stopped = true
				for j := i + 1; j < len(units); j++ {
					outputs[j] = units[j]
					failures = append(failures, FailureDetail{ChunkIndex: j, Error: csMsg})
				}
			}
			if progress != nil {
				progress(i+1, len(units))
			}
			continue
		}

		consecutiveFailures = 0
		outputs[i] = corrected
		processed++
		if progress != nil {
			progress(i+1, len(units))
		}
	}

	return outputs, processed, failures
}

func (e *Engine) fatalError(failures []FailureDetail) error {
	limit := 5
	if len(failures) < limit {
		limit = len(failures)
	}
	var msgs []string
	for _, f := range failures[:limit] {
		msgs = append(msgs, fmt.Sprintf("chunk %d: %s", f.ChunkIndex, f.Error))
	}
	return &FatalError{goerrors.Errorf("correction engine: all units failed: %s", strings.Join(msgs, "; "))}
}
