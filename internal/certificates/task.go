package certificates

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-seminar/certificates/internal/mailer"
	"github.com/aura-seminar/certificates/internal/metrics"
	"github.com/aura-seminar/certificates/internal/models"
	"github.com/aura-seminar/certificates/internal/render"
)

// GeneratorConfig tunes the generation task.
type GeneratorConfig struct {
	// LockTTL bounds how long one task may hold a registration's lock.
	LockTTL time.Duration
	// PublicURL is the externally visible base URL used for links in emails.
	PublicURL string
	// Location is the timezone event dates are printed in.
	Location *time.Location
}

// Result describes what one task run did.
type Result struct {
	Code             string
	Skipped          bool // attendee not present
	Orphaned         bool // user or event missing
	ImageRendered    bool
	DocumentRendered bool
	EmailSent        bool
}

// Generator runs the certificate lifecycle for one registration: code, image, document, email.
// Every step checks before it writes, so a retried run only does the remaining work.
type Generator struct {
	records   Records
	identity  *IdentityManager
	artifacts *Artifacts
	sender    mailer.Sender
	emailLogs EmailLogger
	locker    Locker
	cfg       GeneratorConfig
	logger    *zap.Logger
}

// NewGenerator creates a generator. emailLogs and locker may be nil.
func NewGenerator(records Records, artifacts *Artifacts, sender mailer.Sender, emailLogs EmailLogger, locker Locker, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Generator{
		records:   records,
		identity:  NewIdentityManager(records),
		artifacts: artifacts,
		sender:    sender,
		emailLogs: emailLogs,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
	}
}

func lockKey(registrationID int64) string {
	return "lock:certificate:registration:" + strconv.FormatInt(registrationID, 10)
}

// Generate runs the task for registrationID.
func (g *Generator) Generate(ctx context.Context, registrationID int64, sendEmail bool) (Result, error) {
	res, err := g.generate(ctx, registrationID, sendEmail)
	switch {
	case err != nil:
		metrics.TaskRuns.WithLabelValues("error").Inc()
	case res.Skipped || res.Orphaned:
		metrics.TaskRuns.WithLabelValues("skipped").Inc()
	default:
		metrics.TaskRuns.WithLabelValues("ok").Inc()
	}
	return res, err
}

func (g *Generator) generate(ctx context.Context, registrationID int64, sendEmail bool) (Result, error) {
	var res Result
	log := g.logger.With(zap.Int64("registration_id", registrationID))

	if g.locker != nil {
		release, err := g.locker.Acquire(ctx, lockKey(registrationID), g.cfg.LockTTL)
		if err != nil {
			return res, fmt.Errorf("lock registration %d: %w", registrationID, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release certificate lock", zap.Error(err))
			}
		}()
	}

	// Reload under the lock; the caller's snapshot may be stale.
	reg, err := g.records.GetWithAssociations(ctx, registrationID)
	if err != nil {
		return res, fmt.Errorf("load registration %d: %w", registrationID, err)
	}
	if !reg.Present {
		log.Info("attendee not present, skipping certificate")
		res.Skipped = true
		return res, nil
	}
	if !reg.HasAssociations() {
		log.Warn("registration orphaned, skipping certificate")
		res.Orphaned = true
		return res, nil
	}

	code, err := g.identity.EnsureCode(ctx, reg)
	if err != nil {
		return res, err
	}
	res.Code = code
	log = log.With(zap.String("certificate_code", code))

	fresh, err := g.artifacts.EnsureImage(ctx, reg)
	if err != nil {
		return res, err
	}
	res.ImageRendered = fresh != nil

	res.DocumentRendered, err = g.artifacts.EnsureDocument(ctx, reg)
	if err != nil {
		return res, err
	}

	if sendEmail && !reg.CertificateSent {
		if err := g.deliver(ctx, reg, log); err != nil {
			return res, err
		}
		res.EmailSent = true
	}
	log.Info("certificate task complete",
		zap.Bool("image_rendered", res.ImageRendered),
		zap.Bool("document_rendered", res.DocumentRendered),
		zap.Bool("email_sent", res.EmailSent))
	return res, nil
}

func (g *Generator) deliver(ctx context.Context, reg *models.Registration, log *zap.Logger) error {
	doc, err := g.artifacts.ReadDocument(ctx, reg)
	if err != nil {
		return err
	}
	vars := g.emailVariables(reg)
	subject, _, err := mailer.Render(mailer.TemplateCertificateIssued, vars)
	if err != nil {
		return err
	}

	entry := g.logEmail(ctx, reg, subject, log)
	err = g.sender.Send(ctx, mailer.Message{
		To:         reg.User.Email,
		ToName:     vars["name"],
		TemplateID: mailer.TemplateCertificateIssued,
		Variables:  vars,
		Attachments: []mailer.Attachment{{
			Filename:    "certificate.pdf",
			ContentType: "application/pdf",
			Data:        doc,
		}},
	})
	if err != nil {
		if entry != nil {
			if lerr := g.emailLogs.MarkFailed(ctx, entry.ID, err.Error()); lerr != nil {
				log.Warn("mark email log failed", zap.Error(lerr))
			}
		}
		return fmt.Errorf("send certificate email: %w", err)
	}
	metrics.EmailsSent.Inc()
	if entry != nil {
		if lerr := g.emailLogs.MarkSent(ctx, entry.ID); lerr != nil {
			log.Warn("mark email log sent", zap.Error(lerr))
		}
	}

	flipped, err := g.records.MarkCertificateSent(ctx, reg.ID)
	if err != nil {
		return fmt.Errorf("mark certificate sent: %w", err)
	}
	if !flipped {
		log.Warn("certificate already marked sent by another run")
	}
	reg.CertificateSent = true
	return nil
}

// logEmail records a pending email; a failing log never blocks delivery.
func (g *Generator) logEmail(ctx context.Context, reg *models.Registration, subject string, log *zap.Logger) *models.EmailLog {
	if g.emailLogs == nil {
		return nil
	}
	regID := reg.ID
	entry := &models.EmailLog{
		EventID:        reg.EventID,
		RegistrationID: &regID,
		EmailType:      models.EmailTypeCertificate,
		RecipientEmail: reg.User.Email,
		Subject:        subject,
	}
	if err := g.emailLogs.Create(ctx, entry); err != nil {
		log.Warn("create email log", zap.Error(err))
		return nil
	}
	return entry
}

func (g *Generator) emailVariables(reg *models.Registration) map[string]string {
	return map[string]string{
		"name":             render.FormatDisplayName(reg.User.FullName),
		"event_name":       reg.Event.Name,
		"event_date":       reg.Event.StartsAt.In(g.cfg.Location).Format("January 2, 2006"),
		"certificate_code": reg.CertificateCode,
		"certificate_url":  strings.TrimRight(g.cfg.PublicURL, "/") + "/certificate/" + reg.CertificateCode,
	}
}

// IsRetryable reports whether a task error is worth another attempt. Missing records never come back.
func IsRetryable(err error) bool {
	return !errors.Is(err, models.ErrRegistrationNotFound)
}
