package scheduler

import "context"

// Job is a unit of background work executed by the worker pool.
type Job interface {
	// Execute runs the job. Context cancellation must be respected.
	Execute(ctx context.Context) error

	// OwnerID identifies whose data the job touches, for logging.
	OwnerID() string

	// Description is a human-readable label for the job.
	Description() string
}
