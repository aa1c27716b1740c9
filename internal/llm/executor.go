package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Metrics struct {
	Attempts int
}

// Executor issues generation requests under a retry policy and decodes the
// JSON they return.
type Executor struct {
	gen    Generator
	policy RetryPolicy
	audit  AuditSink
	log    *zap.Logger
}

func NewExecutor(gen Generator, policy RetryPolicy, audit AuditSink, log *zap.Logger) *Executor {
	if audit == nil {
		audit = NopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{gen: gen, policy: policy, audit: audit, log: log}
}

// RunJSON decodes the generator's output into a T. The result is retried
// when the call errors, returns nothing, fails to parse, or is rejected by
// valid.
func RunJSON[T any](ctx context.Context, e *Executor, stage string, req Request, valid func(T) error) (T, Metrics, error) {
	out, attempts, err := Retry(ctx, e.policy, func(ctx context.Context, attempt int) (T, error) {
		var zero T
		started := time.Now()
		e.log.Debug("llm_attempt_start", zap.String("stage", stage), zap.Int("attempt", attempt))
		raw, err := e.gen.Generate(ctx, req)
		entry := AuditEntry{Stage: stage, Attempt: attempt, Raw: raw, At: started}
		if err != nil {
			entry.Err = err.Error()
			e.audit.Record(ctx, entry)
			e.log.Warn("llm_attempt_transport_error", zap.String("stage", stage), zap.Int("attempt", attempt),
				zap.Int64("elapsed_ms", time.Since(started).Milliseconds()), zap.Error(err))
			return zero, err
		}
		if strings.TrimSpace(raw) == "" {
			entry.Err = errEmptyResponse.Error()
			e.audit.Record(ctx, entry)
			e.log.Warn("llm_attempt_empty", zap.String("stage", stage), zap.Int("attempt", attempt),
				zap.Int64("elapsed_ms", time.Since(started).Milliseconds()))
			return zero, errEmptyResponse
		}
		entry.Cleaned = strings.Join(JSONBlocks(raw), "\n")
		var out T
		if err := DecodeJSON(raw, &out); err != nil {
			entry.Err = err.Error()
			e.audit.Record(ctx, entry)
			e.log.Warn("llm_attempt_json_error", zap.String("stage", stage), zap.Int("attempt", attempt),
				zap.Int64("elapsed_ms", time.Since(started).Milliseconds()), zap.Error(err))
			return zero, err
		}
		e.audit.Record(ctx, entry)
		e.log.Debug("llm_attempt_success", zap.String("stage", stage), zap.Int("attempt", attempt),
			zap.Int64("elapsed_ms", time.Since(started).Milliseconds()), zap.Int("response_chars", len(raw)))
		return out, nil
	}, valid)
	if err != nil {
		e.log.Error("llm_stage_failed", zap.String("stage", stage), zap.Int("attempts", attempts), zap.Error(err))
	}
	return out, Metrics{Attempts: attempts}, err
}

// RunText returns the generator's output as trimmed text, retrying empty results.
func RunText(ctx context.Context, e *Executor, stage string, req Request) (string, Metrics, error) {
	out, attempts, err := Retry(ctx, e.policy, func(ctx context.Context, attempt int) (string, error) {
		started := time.Now()
		raw, err := e.gen.Generate(ctx, req)
		entry := AuditEntry{Stage: stage, Attempt: attempt, Raw: raw, At: started}
		if err != nil {
			entry.Err = err.Error()
			e.audit.Record(ctx, entry)
			e.log.Warn("llm_attempt_transport_error", zap.String("stage", stage), zap.Int("attempt", attempt), zap.Error(err))
			return "", err
		}
		text := strings.TrimSpace(raw)
		entry.Cleaned = text
		if text == "" {
			entry.Err = errEmptyResponse.Error()
		}
		e.audit.Record(ctx, entry)
		if text == "" {
			e.log.Warn("llm_attempt_empty", zap.String("stage", stage), zap.Int("attempt", attempt))
			return "", errEmptyResponse
		}
		return text, nil
	}, nil)
	if err != nil {
		e.log.Error("llm_stage_failed", zap.String("stage", stage), zap.Int("attempts", attempts), zap.Error(err))
	}
	return out, Metrics{Attempts: attempts}, err
}
