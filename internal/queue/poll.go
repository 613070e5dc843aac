package queue

import (
	"context"
	"fmt"

	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/notify"
	"github.com/timmy/coursegen/internal/repository"
)

// Options tune a PollQueue.
type Options struct {
	// Priority is the scan order; defaults to domain.JobTypePriority.
	Priority []domain.JobType

	// MaxRescans bounds re-scans of one type after lost claim races.
	MaxRescans int

	// DownloadURL turns an output key into a public URL for Status. An
	// empty result leaves the URL to the caller.
	DownloadURL func(key string) string
}

// PollQueue implements Queue over the job repository.
type PollQueue struct {
	jobs        *repository.JobRepository
	notifier    notify.Notifier
	priority    []domain.JobType
	maxRescans  int
	downloadURL func(key string) string
}

// NewPollQueue creates a PollQueue. A nil notifier disables wake-up hints.
func NewPollQueue(jobs *repository.JobRepository, notifier notify.Notifier, opts Options) *PollQueue {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	priority := opts.Priority
	if len(priority) == 0 {
		priority = domain.JobTypePriority
	}
	maxRescans := opts.MaxRescans
	if maxRescans <= 0 {
		maxRescans = 3
	}
	return &PollQueue{
		jobs:        jobs,
		notifier:    notifier,
		priority:    priority,
		maxRescans:  maxRescans,
		downloadURL: opts.DownloadURL,
	}
}

func (q *PollQueue) Enqueue(ctx context.Context, ownerID string, in domain.JobInput) (string, error) {
	job, err := q.jobs.Create(ctx, ownerID, in)
	if err != nil {
		return "", err
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:   job.JobID,
		logger.FieldJobType: string(job.Type),
		logger.FieldOwnerID: ownerID,
	})
	logger.CtxInfo(ctx, "[queue] job enqueued")

	if err := q.notifier.Publish(ctx, job.Type); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("[queue] wake-up hint not delivered")
	}
	return job.JobID, nil
}

func (q *PollQueue) ClaimNext(ctx context.Context) (*domain.Job, error) {
	for _, t := range q.priority {
		for scan := 0; scan <= q.maxRescans; scan++ {
			ref, err := q.jobs.FindNextPending(ctx, t)
			if err != nil {
				return nil, err
			}
			if ref == nil {
				break
			}

			ok, err := q.jobs.Claim(ctx, *ref)
			if err != nil {
				return nil, err
			}
			if !ok {
				logger.CtxDebug(ctx, "[queue] lost claim on %s job %s, rescanning", t, ref.JobID)
				continue
			}

			job, err := q.jobs.Get(ctx, ref.OwnerID, ref.JobID)
			if err != nil {
				// Claimed but unreadable: hand back enough to mark it failed.
				return &domain.Job{
					OwnerID:   ref.OwnerID,
					JobID:     ref.JobID,
					Type:      ref.Type,
					Status:    domain.JobStatusRunning,
					CreatedAt: ref.CreatedAt,
					InputErr:  fmt.Errorf("load claimed job: %w", err),
				}, nil
			}
			return job, nil
		}
	}
	return nil, nil
}

func (q *PollQueue) Complete(ctx context.Context, job *domain.Job, out *domain.JobOutput) error {
	if err := q.jobs.MarkDone(ctx, job.Ref(), out); err != nil {
		return err
	}
	job.Status = domain.JobStatusDone
	job.Output = out
	return nil
}

func (q *PollQueue) Fail(ctx context.Context, job *domain.Job, message string) error {
	if err := q.jobs.MarkFailed(ctx, job.Ref(), message); err != nil {
		return err
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = domain.TruncateError(message)
	return nil
}

func (q *PollQueue) Status(ctx context.Context, ownerID, jobID string) (*domain.JobStatusView, error) {
	job, err := q.jobs.Get(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}

	view := &domain.JobStatusView{
		JobID:     job.JobID,
		Type:      job.Type,
		Status:    job.Status,
		Display:   domain.DisplayStatus(job.Status),
		Error:     job.ErrorMessage,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Status == domain.JobStatusDone && job.Output != nil {
		view.Filename = job.Output.Filename
		view.Format = job.Output.Format
		view.OutputKey = job.Output.Key
		if q.downloadURL != nil {
			view.DownloadURL = q.downloadURL(job.Output.Key)
		}
	}
	return view, nil
}
