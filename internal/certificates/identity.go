package certificates

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aura-seminar/certificates/internal/models"
)

// CodeAssigner persists a certificate code if none is stored yet and returns the stored one.
type CodeAssigner interface {
	AssignCertificateCode(ctx context.Context, id int64, code string) (string, error)
}

// IdentityManager gives each attendance record one permanent certificate code.
type IdentityManager struct {
	records CodeAssigner
	newCode func() string
}

// NewIdentityManager creates an identity manager issuing random UUIDs.
func NewIdentityManager(records CodeAssigner) *IdentityManager {
	return &IdentityManager{records: records, newCode: uuid.NewString}
}

// EnsureCode returns reg's code, assigning one first if needed. Only the first call writes;
// if another worker assigned a code in between, that code is adopted.
func (m *IdentityManager) EnsureCode(ctx context.Context, reg *models.Registration) (string, error) {
	if reg.CertificateCode != "" {
		return reg.CertificateCode, nil
	}
	stored, err := m.records.AssignCertificateCode(ctx, reg.ID, m.newCode())
	if err != nil {
		return "", fmt.Errorf("ensure certificate code for registration %d: %w", reg.ID, err)
	}
	reg.CertificateCode = stored
	return stored, nil
}
