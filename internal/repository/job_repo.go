package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/kvstore"
)

// Stored attribute names of a job item.
const (
	attrJobID        = "jobId"
	attrType         = "type"
	attrStatus       = "status"
	attrInput        = "input"
	attrCreatedAt    = "createdAt"
	attrUpdatedAt    = "updatedAt"
	attrOutputBucket = "outputBucket"
	attrOutputKey    = "outputKey"
	attrOutputFormat = "outputFormat"
	attrFilename     = "filename"
	attrErrorMessage = "errorMessage"
)

// JobRepository is the typed access layer over job items. Every status change
// is a single conditional write that moves status and queue key together.
type JobRepository struct {
	store kvstore.Store
	now   func() time.Time
}

// NewJobRepository creates a JobRepository backed by store.
func NewJobRepository(store kvstore.Store) *JobRepository {
	return &JobRepository{store: store, now: time.Now}
}

// Create validates in and writes a new pending job.
func (r *JobRepository) Create(ctx context.Context, ownerID string, in domain.JobInput) (*domain.Job, error) {
	if ownerID == "" {
		return nil, &domain.ValidationError{Field: "ownerId", Message: "is required"}
	}
	if ex, ok := in.(*domain.ExportInput); ok {
		ex.ApplyDefaults()
	}
	if err := domain.ValidateInput(in); err != nil {
		return nil, err
	}
	raw, err := domain.EncodeInput(in)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	job := &domain.Job{
		OwnerID:   ownerID,
		JobID:     uuid.New().String(),
		Type:      in.JobType(),
		Status:    domain.JobStatusPending,
		Input:     in,
		CreatedAt: now,
		UpdatedAt: now,
	}

	item := &kvstore.Item{
		Key: kvstore.Key{Owner: ownerID, Entity: JobEntity(job.Type, job.JobID)},
		Attrs: map[string]string{
			attrJobID:           job.JobID,
			attrType:            string(job.Type),
			attrStatus:          string(job.Status),
			attrInput:           raw,
			attrCreatedAt:       formatTime(now),
			attrUpdatedAt:       formatTime(now),
			kvstore.AttrIndexPK: QueuePartition(job.Status),
			kvstore.AttrIndexSK: QueueSortKey(job.Type, now, job.JobID),
		},
	}
	if err := r.store.Put(ctx, item); err != nil {
		return nil, fmt.Errorf("%w: create job: %w", domain.ErrStorageFailure, err)
	}
	return job, nil
}

// Get loads a job of any type. A payload that fails validation is reported
// through Job.InputErr, not as an error.
func (r *JobRepository) Get(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	for _, t := range domain.JobTypePriority {
		item, err := r.store.Get(ctx, kvstore.Key{Owner: ownerID, Entity: JobEntity(t, jobID)})
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
		}
		return jobFromItem(item), nil
	}
	return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
}

// FindNextPending returns the oldest pending job of type t, or nil.
func (r *JobRepository) FindNextPending(ctx context.Context, t domain.JobType) (*domain.JobRef, error) {
	items, err := r.store.Query(ctx, kvstore.QueryInput{
		Partition:  QueuePartition(domain.JobStatusPending),
		SortPrefix: QueueTypePrefix(t),
		Limit:      1,
		Ascending:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending %s jobs: %w", t, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	item := items[0]
	jobID := item.Attr(attrJobID)
	if item.Owner == "" || jobID == "" {
		return nil, fmt.Errorf("queue item %s/%s is missing key fields", item.Owner, item.Entity)
	}
	return &domain.JobRef{
		OwnerID:   item.Owner,
		JobID:     jobID,
		Type:      domain.JobType(item.Attr(attrType)),
		CreatedAt: parseTime(item.Attr(attrCreatedAt)),
	}, nil
}

// Claim moves a pending job to running. It returns false, without error, when
// another worker got there first.
func (r *JobRepository) Claim(ctx context.Context, ref domain.JobRef) (bool, error) {
	err := r.transition(ctx, ref, domain.JobStatusPending, domain.JobStatusRunning, nil)
	if errors.Is(err, kvstore.ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkDone records the output of a running job.
func (r *JobRepository) MarkDone(ctx context.Context, ref domain.JobRef, out *domain.JobOutput) error {
	err := r.transition(ctx, ref, domain.JobStatusRunning, domain.JobStatusDone, map[string]string{
		attrOutputBucket: out.Bucket,
		attrOutputKey:    out.Key,
		attrOutputFormat: out.Format,
		attrFilename:     out.Filename,
		attrErrorMessage: "",
	})
	if err != nil {
		return fmt.Errorf("mark job %s done: %w", ref.JobID, err)
	}
	return nil
}

// MarkFailed records a truncated error message on a running job.
func (r *JobRepository) MarkFailed(ctx context.Context, ref domain.JobRef, message string) error {
	if message == "" {
		message = "unknown error"
	}
	err := r.transition(ctx, ref, domain.JobStatusRunning, domain.JobStatusFailed, map[string]string{
		attrErrorMessage: domain.TruncateError(message),
		attrOutputBucket: "",
		attrOutputKey:    "",
		attrOutputFormat: "",
		attrFilename:     "",
	})
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", ref.JobID, err)
	}
	return nil
}

func (r *JobRepository) transition(ctx context.Context, ref domain.JobRef, from, to domain.JobStatus, extra map[string]string) error {
	if ref.Type == "" {
		return fmt.Errorf("job %s has no type", ref.JobID)
	}
	set := map[string]string{
		attrStatus:          string(to),
		attrUpdatedAt:       formatTime(r.now()),
		kvstore.AttrIndexPK: QueuePartition(to),
	}
	if !ref.CreatedAt.IsZero() {
		set[kvstore.AttrIndexSK] = QueueSortKey(ref.Type, ref.CreatedAt, ref.JobID)
	}
	for k, v := range extra {
		set[k] = v
	}
	cond := map[string]string{
		attrStatus:          string(from),
		kvstore.AttrIndexPK: QueuePartition(from),
	}

	err := r.store.ConditionalUpdate(ctx, kvstore.Key{Owner: ref.OwnerID, Entity: JobEntity(ref.Type, ref.JobID)}, set, cond)
	if err != nil && !errors.Is(err, kvstore.ErrConditionFailed) {
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	return err
}

func jobFromItem(item *kvstore.Item) *domain.Job {
	job := &domain.Job{
		OwnerID:      item.Owner,
		JobID:        item.Attr(attrJobID),
		Type:         domain.JobType(item.Attr(attrType)),
		Status:       domain.JobStatus(item.Attr(attrStatus)),
		CreatedAt:    parseTime(item.Attr(attrCreatedAt)),
		UpdatedAt:    parseTime(item.Attr(attrUpdatedAt)),
		ErrorMessage: item.Attr(attrErrorMessage),
	}
	if key := item.Attr(attrOutputKey); key != "" {
		job.Output = &domain.JobOutput{
			Bucket:   item.Attr(attrOutputBucket),
			Key:      key,
			Format:   item.Attr(attrOutputFormat),
			Filename: item.Attr(attrFilename),
		}
	}
	job.Input, job.InputErr = domain.DecodeInput(job.Type, item.Attr(attrInput))
	return job
}
