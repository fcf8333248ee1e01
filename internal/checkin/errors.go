package checkin

import (
	"errors"
	"fmt"
)

var (
	// ErrStore marks a persistence failure during a decision. The scan is
	// safe to resubmit.
	ErrStore = errors.New("checkin store error")
	// ErrLockTimeout is returned by WithExclusive when the per-code lock
	// could not be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for scan lock")
	// ErrMissingEvent is a caller contract violation.
	ErrMissingEvent = errors.New("event id is required")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}
