package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueCertificates is the Redis list key for certificate generation jobs ready to run.
	QueueCertificates = "worker:certificates"
	// QueueCertificatesDelayed is the sorted set of jobs waiting out their retry delay, scored by due time (ms).
	QueueCertificatesDelayed = "worker:certificates:delayed"
	// QueueDLQ is the dead-letter queue for jobs that exhausted their attempts.
	QueueDLQ = "worker:dlq"
	// DefaultMaxAttempts is the total number of runs a job gets, first run included.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the fixed delay between attempts.
	DefaultRetryDelay = 60 * time.Second
)

// ErrInvalidJob marks a job that can never succeed because its envelope or payload is unusable.
var ErrInvalidJob = errors.New("invalid job")

// JobType identifies the job kind.
type JobType string

const (
	JobTypeCertificate JobType = "certificate_generate"
)

// CertificatePayload is the payload for certificate generation jobs.
type CertificatePayload struct {
	RegistrationID int64 `json:"registration_id"`
	SendEmail      bool  `json:"send_email"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CertificatePayload decodes the payload of a certificate job.
func (j *Job) CertificatePayload() (CertificatePayload, error) {
	var p CertificatePayload
	if j.Type != JobTypeCertificate {
		return p, fmt.Errorf("%w: unknown job type %s", ErrInvalidJob, j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: unmarshal payload: %v", ErrInvalidJob, err)
	}
	return p, nil
}

// Options tunes retry behavior.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	// BlockTimeout bounds how long Dequeue waits, so delayed jobs get promoted regularly.
	BlockTimeout time.Duration
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewQueue creates a new Redis-backed job queue. Zero options fall back to the defaults.
func NewQueue(client *redis.Client, opts Options, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = 5 * time.Second
	}
	return &Queue{client: client, opts: opts, logger: logger, now: time.Now}
}

// EnqueueCertificate enqueues a certificate generation job.
func (q *Queue) EnqueueCertificate(ctx context.Context, payload CertificatePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeCertificate,
		Payload:   body,
		Attempt:   0,
		CreatedAt: q.now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueCertificates, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued certificate job", zap.String("job_id", job.ID), zap.Int64("registration_id", payload.RegistrationID))
	return nil
}

// Dequeue promotes due retries, then blocks up to BlockTimeout for a job. Returns (nil, nil) on timeout.
// An envelope that is not valid JSON goes straight to the DLQ and also yields (nil, nil).
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	if _, err := q.PromoteDue(ctx); err != nil {
		q.logger.Warn("promote delayed jobs failed", zap.Error(err))
	}
	result, err := q.client.BLPop(ctx, q.opts.BlockTimeout, QueueCertificates).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		// The raw envelope is parked as-is; it can never decode on a later attempt.
		if pushErr := q.client.RPush(ctx, QueueDLQ, result[1]).Err(); pushErr != nil {
			q.logger.Error("dlq push failed", zap.String("raw", result[1]), zap.Error(pushErr))
			return nil, pushErr
		}
		q.logger.Warn("undecodable job moved to DLQ", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry records the failure and schedules the job RetryDelay from now.
// Once the job has used MaxAttempts it is pushed to the DLQ instead and dead is true.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) (dead bool, err error) {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if job.Attempt >= q.opts.MaxAttempts {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	due := q.now().Add(q.opts.RetryDelay).UnixMilli()
	if err := q.client.ZAdd(ctx, QueueCertificatesDelayed, redis.Z{Score: float64(due), Member: raw}).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job scheduled for retry", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Duration("delay", q.opts.RetryDelay))
	return false, nil
}

// DeadLetter parks a job in the DLQ without further attempts.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, cause error) error {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
		return fmt.Errorf("dlq push: %w", err)
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.String("reason", job.LastError))
	return nil
}

// PromoteDue moves delayed jobs whose due time has passed onto the ready list.
// ZREM decides ownership, so concurrent workers never promote the same job twice.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	max := strconv.FormatInt(q.now().UnixMilli(), 10)
	due, err := q.client.ZRangeByScore(ctx, QueueCertificatesDelayed, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, QueueCertificatesDelayed, raw).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, QueueCertificates, raw).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}
