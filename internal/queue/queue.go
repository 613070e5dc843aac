// Package queue exposes the job queue to producers and worker loops. The
// conditional claim is the contract; PollQueue implements it by scanning the
// store's queue index, and a broker-backed implementation can replace it
// without touching callers.
package queue

import (
	"context"

	"github.com/timmy/coursegen/internal/domain"
)

// Queue is the job queue seen by the API and the worker loop.
type Queue interface {
	// Enqueue validates in and stores a pending job, returning its id.
	Enqueue(ctx context.Context, ownerID string, in domain.JobInput) (string, error)

	// ClaimNext claims the highest-priority, oldest pending job. It returns
	// nil when nothing is claimable.
	ClaimNext(ctx context.Context) (*domain.Job, error)

	// Complete marks a claimed job done.
	Complete(ctx context.Context, job *domain.Job, out *domain.JobOutput) error

	// Fail marks a claimed job failed.
	Fail(ctx context.Context, job *domain.Job, message string) error

	// Status reports a job for pollers.
	Status(ctx context.Context, ownerID, jobID string) (*domain.JobStatusView, error)
}
