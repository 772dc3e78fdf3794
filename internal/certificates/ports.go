package certificates

import (
	"context"
	"time"

	"github.com/aura-seminar/certificates/internal/models"
	"github.com/aura-seminar/certificates/pkg/queue"
	"github.com/aura-seminar/certificates/pkg/storage"
)

// Records is the attendance record store the pipeline reads and updates.
type Records interface {
	GetWithAssociations(ctx context.Context, id int64) (*models.Registration, error)
	GetByCertificateCode(ctx context.Context, code string) (*models.Registration, error)
	AssignCertificateCode(ctx context.Context, id int64, code string) (string, error)
	MarkCertificateSent(ctx context.Context, id int64) (bool, error)
}

// ScanSource enumerates attendance records for the batch scanners.
type ScanSource interface {
	ListPresent(ctx context.Context, eventID *int64) ([]models.Registration, error)
	ListPendingCertificates(ctx context.Context) ([]models.Registration, error)
}

// ObjectStore is durable binary storage for artifacts.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, visibility storage.Visibility) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Renderer draws the certificate image and wraps an image into a document.
type Renderer interface {
	RenderImage(reg *models.Registration) ([]byte, error)
	RenderDocument(image []byte) ([]byte, error)
}

// EmailLogger records notification dispatches.
type EmailLogger interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Locker provides a mutex shared by every worker and request handler.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Enqueuer schedules generation tasks for the worker pool.
type Enqueuer interface {
	EnqueueCertificate(ctx context.Context, payload queue.CertificatePayload) error
}

// TaskRunner runs one generation task in-process.
type TaskRunner interface {
	Generate(ctx context.Context, registrationID int64, sendEmail bool) (Result, error)
}
