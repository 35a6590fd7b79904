package permit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/platform/msecrets"
)

type fakeSecretStore struct {
	material msecrets.KeyMaterial
}

func (f fakeSecretStore) FetchKeyMaterial(_ context.Context) (msecrets.KeyMaterial, error) {
	return f.material, nil
}

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

func TestIssueSignatureMatchesContractVector(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	issuer := &Issuer{
		Secrets: fakeSecretStore{material: msecrets.KeyMaterial{
			ActiveVersion: "1",
			Keys:          map[string]string{"1": "test-secret-v1"},
		}},
		Clock: fixedClock{now: issuedAt},
	}

	userID, err := ids.NewUserID("device-abc")
	require.NoError(t, err)

	p, err := issuer.Issue(context.Background(), userID, 31)
	require.NoError(t, err)

	assert.Equal(t, 50, p.TotalLimit)
	assert.Equal(t, 5, p.DailyRate)
	assert.Equal(t, issuedAt.AddDate(0, 0, 31), p.ExpiresAt)

	// spec.md §4.4's worked example uses expiresAt 2026-02-01, reachable
	// with validDays=31 from issuedAt 2026-01-01.
	expectedExpiry := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, expectedExpiry, p.ExpiresAt)

	ok, err := issuer.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIssueRejectsNonPositiveValidDays(t *testing.T) {
	issuer := &Issuer{Clock: fixedClock{now: time.Now()}}

	userID, _ := ids.NewUserID("device-abc")

	_, err := issuer.Issue(context.Background(), userID, -1)
	require.Error(t, err)
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := &Issuer{
		Secrets: fakeSecretStore{material: msecrets.KeyMaterial{
			ActiveVersion: "1",
			Keys:          map[string]string{"1": "test-secret-v1"},
		}},
		Clock: fixedClock{now: issuedAt},
	}

	userID, _ := ids.NewUserID("device-abc")

	p, err := issuer.Issue(context.Background(), userID, 31)
	require.NoError(t, err)

	p.TotalLimit = 500

	ok, err := issuer.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTriesPriorKeyVersion(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	oldIssuer := &Issuer{
		Secrets: fakeSecretStore{material: msecrets.KeyMaterial{
			ActiveVersion: "1",
			Keys:          map[string]string{"1": "test-secret-v1"},
		}},
		Clock: fixedClock{now: issuedAt},
	}

	userID, _ := ids.NewUserID("device-abc")

	p, err := oldIssuer.Issue(context.Background(), userID, 31)
	require.NoError(t, err)

	rotatedIssuer := &Issuer{
		Secrets: fakeSecretStore{material: msecrets.KeyMaterial{
			ActiveVersion: "2",
			Keys:          map[string]string{"1": "test-secret-v1", "2": "test-secret-v2"},
		}},
		Clock: fixedClock{now: issuedAt},
	}

	ok, err := rotatedIssuer.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, ok)
}
