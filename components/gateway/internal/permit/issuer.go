// Package permit implements the gateway's permit-issuance path from
// spec.md §4.4: validate validDays, derive tier from the userId prefix,
// and sign a new Permit under the current rotation key.
package permit

import (
	"context"
	"fmt"

	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/platform/msecrets"
)

// DefaultValidDays is used when the caller omits validDays (spec.md §4.4).
const DefaultValidDays = 30

// SecretStore is the capability for reading the current key-rotation
// material, bound to msecrets.Client in production and an in-memory fake
// in tests (spec.md §9's capability-interface pattern).
type SecretStore interface {
	FetchKeyMaterial(ctx context.Context) (msecrets.KeyMaterial, error)
}

// Issuer issues and verifies Permits against the current key set.
type Issuer struct {
	Secrets SecretStore
	Clock   ports.Clock
}

// Issue validates validDays and builds a signed Permit for userID, per
// spec.md §4.4's issue path. Callers that want DefaultValidDays applied
// for an omitted field must resolve that before calling Issue — an
// explicit 0 here is always rejected, never silently defaulted.
func (i *Issuer) Issue(ctx context.Context, userID ids.UserID, validDays int) (permit.Permit, error) {
	if validDays < 1 {
		return permit.Permit{}, mzerrors.ValidationError{
			EntityType: "permit",
			Message:    "validDays must be a positive integer",
		}
	}

	keySet, err := i.loadKeySet(ctx)
	if err != nil {
		return permit.Permit{}, err
	}

	tier := permit.TierForUser(userID)

	return keySet.Issue(userID, tier, i.Clock.Now(), validDays)
}

// Verify checks p's signature against the currently-valid key set.
func (i *Issuer) Verify(ctx context.Context, p permit.Permit) (bool, error) {
	keySet, err := i.loadKeySet(ctx)
	if err != nil {
		return false, err
	}

	return keySet.Verify(p), nil
}

func (i *Issuer) loadKeySet(ctx context.Context) (permit.KeySet, error) {
	material, err := i.Secrets.FetchKeyMaterial(ctx)
	if err != nil {
		return permit.KeySet{}, fmt.Errorf("permit: fetch key material: %w", err)
	}

	keys := make(map[int][]byte, len(material.Keys))

	for versionStr, key := range material.Keys {
		version, err := parseVersion(versionStr)
		if err != nil {
			return permit.KeySet{}, err
		}

		keys[version] = []byte(key)
	}

	activeVersion, err := parseVersion(material.ActiveVersion)
	if err != nil {
		return permit.KeySet{}, err
	}

	return permit.KeySet{ActiveVersion: activeVersion, Keys: keys}, nil
}

func parseVersion(s string) (int, error) {
	var v int

	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("permit: invalid key version %q: %w", s, err)
	}

	return v, nil
}
