package models

import (
	"errors"
	"time"
)

// ErrRegistrationNotFound is returned when no attendance record matches a lookup.
var ErrRegistrationNotFound = errors.New("registration not found")

// Registration is a person's attendance record for an event.
// User and Event are nil when the referenced row is missing (orphaned record).
type Registration struct {
	ID              int64     `json:"id"`
	UserID          *int64    `json:"user_id,omitempty"`
	EventID         *int64    `json:"event_id,omitempty"`
	Present         bool      `json:"present"`
	CertificateCode string    `json:"certificate_code,omitempty"`
	CertificateSent bool      `json:"certificate_sent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	User  *User  `json:"user,omitempty"`
	Event *Event `json:"event,omitempty"`
}

// HasAssociations reports whether both the person and the event could be resolved.
func (r *Registration) HasAssociations() bool {
	return r.User != nil && r.Event != nil
}
