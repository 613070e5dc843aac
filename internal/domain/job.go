package domain

import (
	"time"
	"unicode/utf8"
)

// JobType identifies which handler processes a job.
type JobType string

const (
	JobTypeCurriculum JobType = "curriculumJob"
	JobTypeChapter    JobType = "chapterJob"
)

// JobTypePriority is the static scan order of the worker: curriculum jobs are
// always drained before chapter exports.
var JobTypePriority = []JobType{JobTypeCurriculum, JobTypeChapter}

// JobStatus represents the lifecycle state of a job.
// Values include JobStatusPending, JobStatusRunning, JobStatusDone, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Valid reports whether s is one of the four known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusDone, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is done or failed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// MaxErrorMessageLen bounds the error message stored on a failed job.
const MaxErrorMessageLen = 500

// TruncateError shortens msg to MaxErrorMessageLen runes.
func TruncateError(msg string) string {
	if utf8.RuneCountInString(msg) <= MaxErrorMessageLen {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:MaxErrorMessageLen])
}

// JobRef is the minimum needed to claim a job found in the queue index.
type JobRef struct {
	OwnerID   string
	JobID     string
	Type      JobType
	CreatedAt time.Time
}

// JobOutput points at the bytes a finished job produced.
type JobOutput struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Format   string `json:"format"`
	Filename string `json:"filename"`
}

// Location returns bucket/key.
func (o *JobOutput) Location() string {
	if o.Bucket == "" {
		return o.Key
	}
	return o.Bucket + "/" + o.Key
}

// Job is a durable unit of asynchronous work.
type Job struct {
	OwnerID      string
	JobID        string
	Type         JobType
	Status       JobStatus
	Input        JobInput
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Output       *JobOutput // set only when done
	ErrorMessage string     // set only when failed

	// InputErr is set instead of Input when the stored payload fails to
	// decode or validate.
	InputErr error
}

// Ref returns the queue reference of j.
func (j *Job) Ref() JobRef {
	return JobRef{OwnerID: j.OwnerID, JobID: j.JobID, Type: j.Type, CreatedAt: j.CreatedAt}
}

// JobStatusView is what status pollers see.
type JobStatusView struct {
	JobID       string    `json:"jobId"`
	Type        JobType   `json:"type"`
	Status      JobStatus `json:"status"`
	Display     string    `json:"displayStatus"`
	Filename    string    `json:"filename,omitempty"`
	Format      string    `json:"format,omitempty"`
	OutputKey   string    `json:"outputKey,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DisplayStatus maps failed to "error" for clients; other statuses pass through.
func DisplayStatus(s JobStatus) string {
	if s == JobStatusFailed {
		return "error"
	}
	return string(s)
}
