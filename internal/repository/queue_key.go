package repository

import (
	"strings"
	"time"

	"github.com/timmy/coursegen/internal/domain"
)

// timeLayout is fixed width so that lexical order of stored timestamps is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// QueuePartition is the index partition for a status.
func QueuePartition(s domain.JobStatus) string {
	return "JOB#" + strings.ToUpper(string(s))
}

// QueueSortKey is the index sort key: type#createdAt#jobId.
func QueueSortKey(t domain.JobType, createdAt time.Time, jobID string) string {
	return string(t) + "#" + formatTime(createdAt) + "#" + jobID
}

// QueueTypePrefix selects one job type within a partition.
func QueueTypePrefix(t domain.JobType) string {
	return string(t) + "#"
}

// JobEntity is the item key of a job within its owner's partition.
func JobEntity(t domain.JobType, jobID string) string {
	return string(t) + "#" + jobID
}

func curriculumEntity(id string) string {
	return "curriculum#" + id
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
