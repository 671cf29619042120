package gallery

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies operation timestamps, blob modification times in the
// memory store and session expiry checks.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator issues operation identifiers.
type IDGenerator interface {
	New() string
}

// UUIDGenerator issues random UUIDv4 operation identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
