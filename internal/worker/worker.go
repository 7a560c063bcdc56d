// Package worker drains the email job queue.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eduevent/backend/pkg/queue"
)

// JobSource is the queue the worker consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Deliverer sends the attendance token for one queued email.
type Deliverer interface {
	DeliverToken(ctx context.Context, p queue.EmailPayload) error
}

// EmailProcessor processes email jobs: reload the registration, send, and
// retry with dead-lettering on failure.
type EmailProcessor struct {
	source    JobSource
	deliverer Deliverer
	backoff   time.Duration
	logger    *zap.Logger
}

// NewEmailProcessor creates an email processor.
func NewEmailProcessor(source JobSource, deliverer Deliverer, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{source: source, deliverer: deliverer, backoff: queue.RetryBackoff, logger: logger}
}

// SetBackoff overrides the pause after a failure, for tests.
func (p *EmailProcessor) SetBackoff(d time.Duration) { p.backoff = d }

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := queue.DecodeEmail(job)
	if err != nil {
		return err
	}
	if err := p.deliverer.DeliverToken(ctx, payload); err != nil {
		return fmt.Errorf("deliver %s to registration %s: %w", payload.EmailType, payload.RegistrationID, err)
	}
	p.logger.Info("email job completed",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("registration_id", payload.RegistrationID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns
// when ctx is cancelled.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("email worker stopping")
			return
		}

		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.source.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
