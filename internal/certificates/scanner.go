package certificates

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-seminar/certificates/internal/models"
	"github.com/aura-seminar/certificates/pkg/queue"
)

// MissingOptions controls a gap scan.
type MissingOptions struct {
	EventID   *int64
	SendEmail bool
	Sync      bool
}

// MissingSummary counts what a gap scan did. Processed covers both synchronous runs and enqueues.
// In synchronous mode a task that found the attendee absent counts as Skipped, and one that
// found the user or event gone counts as Orphaned.
type MissingSummary struct {
	Total          int
	Processed      int
	AlreadyPresent int
	Skipped        int
	Orphaned       int
	Errors         int
}

// PendingOptions controls a pending scan. Progress, when set, is called before each dispatch.
type PendingOptions struct {
	SendEmail bool
	Sync      bool
	Progress  func(reg models.Registration)
}

// PendingSummary counts what a pending scan did.
type PendingSummary struct {
	Total      int
	Dispatched int
	Skipped    int
	Orphaned   int
	Errors     int
}

// Scanner finds registrations whose certificates are incomplete and dispatches tasks for them.
// A failure on one registration is counted and logged; it never stops the scan.
type Scanner struct {
	source    ScanSource
	artifacts *Artifacts
	runner    TaskRunner
	enqueuer  Enqueuer
	logger    *zap.Logger
}

// NewScanner creates a scanner. runner serves synchronous mode, enqueuer asynchronous mode.
func NewScanner(source ScanSource, artifacts *Artifacts, runner TaskRunner, enqueuer Enqueuer, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{source: source, artifacts: artifacts, runner: runner, enqueuer: enqueuer, logger: logger}
}

// ProcessMissing dispatches every present registration lacking an image or a document.
// Existence is verified against the store, not the cache.
func (s *Scanner) ProcessMissing(ctx context.Context, opts MissingOptions) (MissingSummary, error) {
	var sum MissingSummary
	regs, err := s.source.ListPresent(ctx, opts.EventID)
	if err != nil {
		return sum, fmt.Errorf("list present registrations: %w", err)
	}
	sum.Total = len(regs)
	for i := range regs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		reg := &regs[i]
		log := s.logger.With(zap.Int64("registration_id", reg.ID))
		if !reg.HasAssociations() {
			sum.Orphaned++
			continue
		}
		if reg.CertificateCode != "" {
			complete, err := s.complete(ctx, reg)
			if err != nil {
				log.Error("check certificate artifacts", zap.Error(err))
				sum.Errors++
				continue
			}
			if complete {
				sum.AlreadyPresent++
				continue
			}
		}
		res, err := s.dispatch(ctx, reg.ID, opts.SendEmail, opts.Sync)
		switch {
		case err != nil:
			log.Error("dispatch certificate task", zap.Error(err))
			sum.Errors++
		case res.Orphaned:
			sum.Orphaned++
		case res.Skipped:
			sum.Skipped++
		default:
			sum.Processed++
		}
	}
	s.logger.Info("gap scan finished",
		zap.Int("total", sum.Total),
		zap.Int("processed", sum.Processed),
		zap.Int("already_present", sum.AlreadyPresent),
		zap.Int("skipped", sum.Skipped),
		zap.Int("orphaned", sum.Orphaned),
		zap.Int("errors", sum.Errors))
	return sum, nil
}

// ProcessPending dispatches every present registration without a code or not yet emailed.
// Orphaned registrations are skipped without counting as errors.
func (s *Scanner) ProcessPending(ctx context.Context, opts PendingOptions) (PendingSummary, error) {
	var sum PendingSummary
	regs, err := s.source.ListPendingCertificates(ctx)
	if err != nil {
		return sum, fmt.Errorf("list pending registrations: %w", err)
	}
	sum.Total = len(regs)
	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if !reg.HasAssociations() {
			sum.Orphaned++
			continue
		}
		if opts.Progress != nil {
			opts.Progress(reg)
		}
		res, err := s.dispatch(ctx, reg.ID, opts.SendEmail, opts.Sync)
		switch {
		case err != nil:
			s.logger.Error("dispatch certificate task", zap.Int64("registration_id", reg.ID), zap.Error(err))
			sum.Errors++
		case res.Orphaned:
			sum.Orphaned++
		case res.Skipped:
			sum.Skipped++
		default:
			sum.Dispatched++
		}
	}
	s.logger.Info("pending scan finished",
		zap.Int("total", sum.Total),
		zap.Int("dispatched", sum.Dispatched),
		zap.Int("skipped", sum.Skipped),
		zap.Int("orphaned", sum.Orphaned),
		zap.Int("errors", sum.Errors))
	return sum, nil
}

func (s *Scanner) complete(ctx context.Context, reg *models.Registration) (bool, error) {
	for _, kind := range []Kind{KindImage, KindDocument} {
		ok, err := s.artifacts.Verify(ctx, reg, kind)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// dispatch runs the task in-process or enqueues it. Only a synchronous run has a Result to report.
func (s *Scanner) dispatch(ctx context.Context, registrationID int64, sendEmail, sync bool) (Result, error) {
	if sync {
		return s.runner.Generate(ctx, registrationID, sendEmail)
	}
	return Result{}, s.enqueuer.EnqueueCertificate(ctx, queue.CertificatePayload{RegistrationID: registrationID, SendEmail: sendEmail})
}
