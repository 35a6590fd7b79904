// Package msystem provides the production implementations of
// ports.Clock and ports.Random — the only two capability interfaces
// whose "real" adapter is just a thin stdlib/uuid wrapper rather than a
// network client, so they live together in one small package instead of
// one file each under internal/platform.
package msystem

import (
	"time"

	"github.com/google/uuid"
)

// Clock reads the real wall clock.
type Clock struct{}

func (Clock) Now() time.Time { return time.Now() }

// Random generates RFC 4122 v4 UUIDs.
type Random struct{}

func (Random) UUID() string { return uuid.NewString() }
