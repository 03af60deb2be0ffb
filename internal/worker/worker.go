// Package worker consumes enrichment workflow jobs from the queue and
// executes them. Transient failures re-enqueue the job with the same
// workflow instance id, so a retried job resumes from the recorded step
// results instead of repeating side effects; terminal failures go straight
// to the dead-letter queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newtube/backend/internal/workflow"
	"github.com/newtube/backend/pkg/apperr"
	"github.com/newtube/backend/pkg/queue"
)

// EnrichmentProcessor runs queued enrichment workflow instances.
type EnrichmentProcessor struct {
	enricher *workflow.Enricher
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewEnrichmentProcessor creates an enrichment job processor.
func NewEnrichmentProcessor(enricher *workflow.Enricher, q *queue.Queue, logger *zap.Logger) *EnrichmentProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrichmentProcessor{enricher: enricher, queue: q, logger: logger}
}

// Process executes one enrichment job.
func (p *EnrichmentProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEnrichment {
		return apperr.Terminal(fmt.Errorf("unknown job type: %s", job.Type))
	}
	var payload queue.EnrichmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperr.Terminal(fmt.Errorf("unmarshal payload: %w", err))
	}
	return p.enricher.Run(ctx, payload.Kind, workflow.Input{
		InstanceID: payload.InstanceID,
		UserID:     payload.UserID,
		VideoID:    payload.VideoID,
		Prompt:     payload.Prompt,
	})
}

// Run starts the worker loop: dequeue, process, retry transient failures.
func (p *EnrichmentProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("enrichment worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if apperr.IsTerminal(err) {
				if dlqErr := p.queue.Fail(ctx, job); dlqErr != nil {
					p.logger.Error("dlq push failed", zap.Error(dlqErr), zap.String("job_id", job.ID))
				}
				continue
			}
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
