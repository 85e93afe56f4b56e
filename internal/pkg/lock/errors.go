package lock

import (
	"fmt"

	"lunar-card/internal/apperr"
)

// Lock-related errors.
var (
	// ErrLockTimeout is returned when a lock cannot be acquired within the timeout period.
	ErrLockTimeout = fmt.Errorf("%w: lock acquisition timeout", apperr.ErrConflict)
)
