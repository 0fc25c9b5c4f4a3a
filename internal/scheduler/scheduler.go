package scheduler

import (
	"context"
	"time"
)

// DelayQueue is the durable delayed-execution collaborator. Registrations
// survive process restarts and fire at-least-once; the callback handler is
// responsible for idempotence.
type DelayQueue interface {
	// Schedule registers jobKey to become due at the given time.
	Schedule(ctx context.Context, jobKey string, at time.Time) error

	// Cancel removes a registration. Cancelling an unknown key is not an error.
	Cancel(ctx context.Context, jobKey string) error

	// Due claims up to limit job keys whose time has come. A claimed key is
	// removed from the queue; each key is claimed by exactly one caller.
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
}
