package certificates

import (
	"errors"
	"path"
	"strconv"

	"github.com/aura-seminar/certificates/internal/models"
)

// Kind identifies one of the two artifacts derived from a certificate.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

var (
	// ErrMissingAssociation marks an orphaned record: its person or event no longer resolves.
	ErrMissingAssociation = errors.New("registration is missing its user or event")
	// ErrNoCode is returned when artifact keys are requested before a code was assigned.
	ErrNoCode = errors.New("registration has no certificate code")
)

// Extension returns the storage file extension for the artifact kind.
func (k Kind) Extension() string {
	if k == KindDocument {
		return ".pdf"
	}
	return ".jpg"
}

// ArtifactKey maps a registration to certificates/{year}/{event-slug}/{code}.{jpg|pdf}.
func ArtifactKey(reg *models.Registration, kind Kind) (string, error) {
	if reg.Event == nil {
		return "", ErrMissingAssociation
	}
	if reg.CertificateCode == "" {
		return "", ErrNoCode
	}
	year := strconv.Itoa(reg.Event.StartsAt.Year())
	return path.Join("certificates", year, reg.Event.Slug, reg.CertificateCode) + kind.Extension(), nil
}

func existenceKey(kind Kind, code string) string {
	return "exists:" + string(kind) + ":" + code
}
