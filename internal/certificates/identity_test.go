package certificates

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCode_AssignsOnce(t *testing.T) {
	ctx := context.Background()
	records := newFakeRecords(attendee(1, true))
	m := NewIdentityManager(records)

	reg, err := records.GetWithAssociations(ctx, 1)
	require.NoError(t, err)

	first, err := m.EnsureCode(ctx, reg)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err, "codes are canonical UUIDs")

	second, err := m.EnsureCode(ctx, reg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, records.codeWrites)
	assert.Equal(t, first, records.get(1).CertificateCode)
}

func TestEnsureCode_ExistingCodeHasNoSideEffects(t *testing.T) {
	reg := attendee(1, true)
	reg.CertificateCode = "existing"
	records := newFakeRecords(reg)

	code, err := NewIdentityManager(records).EnsureCode(context.Background(), &reg)
	require.NoError(t, err)

	assert.Equal(t, "existing", code)
	assert.Equal(t, 0, records.codeWrites)
}

func TestEnsureCode_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	records := newFakeRecords(attendee(1, true))
	n := 0
	m := NewIdentityManager(records)
	m.newCode = func() string {
		n++
		return "code-" + strconv.Itoa(n)
	}

	// Both callers loaded the record before either assigned a code.
	a, _ := records.GetWithAssociations(ctx, 1)
	b, _ := records.GetWithAssociations(ctx, 1)

	codeA, err := m.EnsureCode(ctx, a)
	require.NoError(t, err)
	codeB, err := m.EnsureCode(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, "code-1", codeA)
	assert.Equal(t, "code-1", codeB)
	assert.Equal(t, "code-1", b.CertificateCode)
	assert.Equal(t, 1, records.codeWrites)
}
