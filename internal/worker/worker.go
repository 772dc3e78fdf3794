package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-seminar/certificates/internal/certificates"
	"github.com/aura-seminar/certificates/internal/metrics"
	"github.com/aura-seminar/certificates/pkg/queue"
)

// RetryBackoff is how long a loop pauses after a queue error.
const RetryBackoff = 2 * time.Second

// JobQueue is the part of the Redis queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (dead bool, err error)
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// CertificateProcessor runs certificate generation jobs from the queue on a fixed number of loops.
type CertificateProcessor struct {
	queue       JobQueue
	runner      certificates.TaskRunner
	concurrency int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewCertificateProcessor creates a processor running concurrency loops.
func NewCertificateProcessor(q JobQueue, runner certificates.TaskRunner, concurrency int, logger *zap.Logger) *CertificateProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &CertificateProcessor{queue: q, runner: runner, concurrency: concurrency, backoff: RetryBackoff, logger: logger}
}

// Process executes one certificate job.
func (p *CertificateProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.CertificatePayload()
	if err != nil {
		return err
	}
	res, err := p.runner.Generate(ctx, payload.RegistrationID, payload.SendEmail)
	if err != nil {
		return err
	}
	p.logger.Info("certificate job completed",
		zap.String("job_id", job.ID),
		zap.Int64("registration_id", payload.RegistrationID),
		zap.String("certificate_code", res.Code),
		zap.Bool("email_sent", res.EmailSent))
	return nil
}

// Run starts the loops and blocks until ctx is canceled.
func (p *CertificateProcessor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		loop := i
		g.Go(func() error {
			p.loop(ctx, loop)
			return nil
		})
	}
	return g.Wait()
}

// loop dequeues, processes and retries on error until ctx is done.
func (p *CertificateProcessor) loop(ctx context.Context, n int) {
	log := p.logger.With(zap.Int("loop", n))
	for {
		if ctx.Err() != nil {
			log.Info("certificate worker stopping")
			return
		}
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		log.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
		if err := p.Process(ctx, job); err != nil {
			p.fail(ctx, log, job, err)
		}
	}
}

func (p *CertificateProcessor) fail(ctx context.Context, log *zap.Logger, job *queue.Job, cause error) {
	log = log.With(zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt+1))
	// Rescheduling must survive shutdown, or a canceled job would be lost.
	ctx = context.WithoutCancel(ctx)
	if !retryable(cause) {
		log.Error("job failed permanently", zap.Error(cause))
		if err := p.queue.DeadLetter(ctx, job, cause); err != nil {
			log.Error("dead-letter failed", zap.Error(err))
			return
		}
		metrics.DeadLettered.Inc()
		return
	}
	log.Error("job failed", zap.Error(cause))
	dead, err := p.queue.Retry(ctx, job, cause)
	if err != nil {
		log.Error("retry enqueue failed", zap.Error(err))
		return
	}
	if dead {
		metrics.DeadLettered.Inc()
	}
}

func (p *CertificateProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// retryable is false for jobs that fail the same way on every attempt.
func retryable(err error) bool {
	if errors.Is(err, queue.ErrInvalidJob) {
		return false
	}
	return certificates.IsRetryable(err)
}
