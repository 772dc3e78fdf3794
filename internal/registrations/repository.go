package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-seminar/certificates/internal/models"
)

// selectWithAssociations loads a registration with its user and event. LEFT JOINs keep orphaned rows.
const selectWithAssociations = `SELECT r.id, r.user_id, r.event_id, r.present, COALESCE(r.certificate_code, ''), r.certificate_sent,
		r.created_at, r.updated_at,
		u.id, u.email, u.full_name,
		e.id, e.name, e.slug, e.type, e.starts_at
	FROM registrations r
	LEFT JOIN users u ON u.id = r.user_id
	LEFT JOIN events e ON e.id = r.event_id`

// Repository handles attendance record persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetWithAssociations reloads a registration and its user and event from the database.
func (r *Repository) GetWithAssociations(ctx context.Context, id int64) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, selectWithAssociations+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return reg, nil
}

// GetByCertificateCode returns the registration a certificate code was issued to.
func (r *Repository) GetByCertificateCode(ctx context.Context, code string) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, selectWithAssociations+` WHERE r.certificate_code = $1`, code))
	if err != nil {
		return nil, notFound(err)
	}
	return reg, nil
}

// AssignCertificateCode stores code unless the registration already has one, and returns the stored code.
// An empty code counts as unassigned.
// The first writer wins: a concurrent caller gets back the code that was persisted before it.
func (r *Repository) AssignCertificateCode(ctx context.Context, id int64, code string) (string, error) {
	const q = `UPDATE registrations SET certificate_code = $2, updated_at = NOW()
		WHERE id = $1 AND (certificate_code IS NULL OR certificate_code = '')
		RETURNING certificate_code`
	var stored string
	err := r.pool.QueryRow(ctx, q, id, code).Scan(&stored)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("assign certificate code: %w", err)
	}
	var existing *string
	if err := r.pool.QueryRow(ctx, `SELECT certificate_code FROM registrations WHERE id = $1`, id).Scan(&existing); err != nil {
		return "", notFound(err)
	}
	if existing == nil || *existing == "" {
		return "", fmt.Errorf("assign certificate code: registration %d lost its code concurrently", id)
	}
	return *existing, nil
}

// MarkCertificateSent flips certificate_sent to true. It reports false when the flag was already set.
func (r *Repository) MarkCertificateSent(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE registrations SET certificate_sent = TRUE, updated_at = NOW() WHERE id = $1 AND certificate_sent = FALSE`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("mark certificate sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPresent returns registrations with confirmed attendance, optionally restricted to one event.
func (r *Repository) ListPresent(ctx context.Context, eventID *int64) ([]models.Registration, error) {
	q := selectWithAssociations + ` WHERE r.present`
	var args []interface{}
	if eventID != nil {
		q += ` AND r.event_id = $1`
		args = append(args, *eventID)
	}
	return r.list(ctx, q+` ORDER BY r.id`, args...)
}

// ListPendingCertificates returns present registrations that either have no code yet or were never emailed.
func (r *Repository) ListPendingCertificates(ctx context.Context) ([]models.Registration, error) {
	const cond = ` WHERE r.present AND (r.certificate_sent = FALSE OR r.certificate_code IS NULL OR r.certificate_code = '') ORDER BY r.id`
	return r.list(ctx, selectWithAssociations+cond)
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var (
		reg                             models.Registration
		userID, eventID                 *int64
		userEmail, userName             *string
		eventName, eventSlug, eventType *string
		eventStartsAt                   *time.Time
	)
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Present, &reg.CertificateCode, &reg.CertificateSent,
		&reg.CreatedAt, &reg.UpdatedAt,
		&userID, &userEmail, &userName,
		&eventID, &eventName, &eventSlug, &eventType, &eventStartsAt)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		reg.User = &models.User{ID: *userID, Email: deref(userEmail), FullName: deref(userName)}
	}
	if eventID != nil && eventStartsAt != nil {
		reg.Event = &models.Event{ID: *eventID, Name: deref(eventName), Slug: deref(eventSlug), Type: deref(eventType), StartsAt: *eventStartsAt}
	}
	return &reg, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrRegistrationNotFound
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
