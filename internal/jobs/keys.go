// Package jobs implements the handlers for each job type: curriculum
// generation and chapter export.
package jobs

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/storage"
)

const keyRoot = "textbook"

var unsafeKeyCharRe = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// EmailSafe makes an owner id usable as a blob key segment.
func EmailSafe(owner string) string {
	return unsafeKeyCharRe.ReplaceAllString(owner, "_")
}

// GenerationPrefix is the folder a generation job writes its artifacts to.
func GenerationPrefix(owner, jobID string) string {
	return fmt.Sprintf("%s/%s/%s/", keyRoot, EmailSafe(owner), jobID)
}

// ExportKey is where a rendered chapter is uploaded.
func ExportKey(owner, curriculumID string, week int, filename string) string {
	return fmt.Sprintf("%s/%s/%s/week%d/%s", keyRoot, EmailSafe(owner), curriculumID, week, filename)
}

func upload(ctx context.Context, store storage.ObjectStorage, key string, data []byte, contentType string) error {
	if err := store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// removeAll deletes the artifacts of a job that failed part way. Failures
// are logged; the job error is what the caller reports.
func removeAll(ctx context.Context, store storage.ObjectStorage, keys []string) {
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			logger.With(logger.Fields{"key": key}).Warn(ctx, "[jobs] failed to remove partial artifact: %v", err)
		}
	}
}
