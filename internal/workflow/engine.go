// Package workflow is a durable multi-step execution engine. A workflow
// instance is a named sequence of steps; each step's result is recorded in
// a step log keyed by instance id, so an instance invoked again after a
// failure resumes where it left off instead of repeating side effects.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newtube/backend/pkg/apperr"
)

// Policy bounds per-step retries. Backoff doubles per attempt.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy is used when a zero Policy is supplied.
var DefaultPolicy = Policy{MaxAttempts: 3, Backoff: 2 * time.Second}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultPolicy.Backoff
	}
	return p
}

// Run is one workflow instance execution context. Steps of one instance run
// sequentially; later steps see earlier results through ordinary data flow.
type Run struct {
	ID     string
	log    StepLog
	logger *zap.Logger
	policy Policy
}

// NewRun creates an execution context for instance id.
func NewRun(id string, log StepLog, logger *zap.Logger, policy Policy) *Run {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Run{ID: id, log: log, logger: logger, policy: policy.withDefaults()}
}

// Step executes one named step at most once per instance. If the step log
// already holds a result for (instance, name) it is returned without
// invoking fn. Otherwise fn runs with bounded retries: transient errors back
// off and retry, terminal errors (apperr.IsTerminal) fail immediately, and
// exhausting attempts fails the instance. The result is recorded before it
// is returned; a Put failure is reported as a step failure since the
// at-most-once guarantee would otherwise be lost on resume.
func Step[T any](ctx context.Context, r *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, ok, err := r.log.Get(ctx, r.ID, name)
	if err != nil {
		return zero, fmt.Errorf("step %s: read log: %w", name, err)
	}
	if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err != nil {
			return zero, fmt.Errorf("step %s: decode recorded result: %w", name, err)
		}
		r.logger.Debug("step result replayed from log",
			zap.String("instance_id", r.ID), zap.String("step", name))
		return cached, nil
	}

	backoff := r.policy.Backoff
	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			raw, err := json.Marshal(result)
			if err != nil {
				return zero, fmt.Errorf("step %s: encode result: %w", name, err)
			}
			if err := r.log.Put(ctx, r.ID, name, raw); err != nil {
				return zero, fmt.Errorf("step %s: record result: %w", name, err)
			}
			return result, nil
		}

		if apperr.IsTerminal(err) {
			return zero, fmt.Errorf("step %s: %w", name, err)
		}
		if attempt >= r.policy.MaxAttempts {
			return zero, fmt.Errorf("step %s: %d attempts exhausted: %w", name, attempt, err)
		}
		r.logger.Warn("step failed, retrying",
			zap.String("instance_id", r.ID),
			zap.String("step", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("step %s: %w", name, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
