package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/coursegen/internal/curriculum"
	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/repository"
	"github.com/timmy/coursegen/internal/storage"
)

// Artifact names written by a generation job.
const (
	CurriculumFile = "curriculum16.json"
	ChapterFile    = "week1_chapter.md"
	SummaryFile    = "summary.txt"
)

// GenerationHandler runs curriculum generation jobs. It always produces a
// curriculum: when the backend fails it stores the local fallback.
type GenerationHandler struct {
	engine    *curriculum.Engine
	curricula *repository.CurriculumRepository
	storage   storage.ObjectStorage
	bucket    string
	now       func() time.Time
}

func NewGenerationHandler(
	engine *curriculum.Engine,
	curricula *repository.CurriculumRepository,
	objectStorage storage.ObjectStorage,
	bucket string,
) *GenerationHandler {
	return &GenerationHandler{
		engine:    engine,
		curricula: curricula,
		storage:   objectStorage,
		bucket:    bucket,
		now:       time.Now,
	}
}

// Execute generates the curriculum, uploads its artifacts and records it
// under the job id, which doubles as the curriculum id.
func (h *GenerationHandler) Execute(ctx context.Context, job *domain.Job) (*domain.JobOutput, error) {
	in, ok := job.Input.(*domain.GenerationInput)
	if !ok {
		return nil, &domain.ValidationError{Field: "input", Message: fmt.Sprintf("expected generation input, got %T", job.Input)}
	}

	outcome := h.engine.GenerateWithFallback(ctx, in)
	result := outcome.Result

	weeks, err := curriculum.CurriculumJSON(result.Curriculum)
	if err != nil {
		return nil, err
	}
	chapter := curriculum.ChapterMarkdown(&result.Week1Chapter)
	summary := curriculum.Summary(weeks, chapter)

	prefix := GenerationPrefix(job.OwnerID, job.JobID)
	curriculumKey := prefix + CurriculumFile
	chapterKey := prefix + ChapterFile
	summaryKey := prefix + SummaryFile

	var stored []string
	for _, a := range []struct {
		key         string
		data        []byte
		contentType string
	}{
		{curriculumKey, weeks, "application/json"},
		{chapterKey, []byte(chapter), "text/markdown; charset=utf-8"},
		{summaryKey, []byte(summary), "text/plain; charset=utf-8"},
	} {
		if err := upload(ctx, h.storage, a.key, a.data, a.contentType); err != nil {
			removeAll(ctx, h.storage, stored)
			return nil, err
		}
		stored = append(stored, a.key)
	}

	rec := &domain.CurriculumRecord{
		OwnerID:       job.OwnerID,
		CurriculumID:  job.JobID,
		JobID:         job.JobID,
		Subject:       in.Subject,
		Passion:       in.Passion,
		AgeRange:      in.AgeRange,
		Notes:         in.Notes,
		Likes:         in.PassionLikes,
		Weeks:         result.Curriculum,
		CurriculumKey: curriculumKey,
		ChapterKey:    chapterKey,
		SummaryKey:    summaryKey,
		Fallback:      outcome.Fallback,
		CreatedAt:     h.now().UTC(),
	}
	if err := h.curricula.Save(ctx, rec); err != nil {
		removeAll(ctx, h.storage, stored)
		return nil, err
	}

	entry := logger.With(logger.Fields{
		logger.FieldJobID: job.JobID,
		"fallback":        outcome.Fallback,
	}).WithAttempt(outcome.Attempts)
	if len(outcome.Deficits) > 0 {
		entry = entry.With(logger.Fields{"deficits": len(outcome.Deficits)})
	}
	entry.Info(ctx, "[jobs] curriculum stored at %s", prefix)

	return &domain.JobOutput{
		Bucket:   h.bucket,
		Key:      curriculumKey,
		Format:   "json",
		Filename: CurriculumFile,
	}, nil
}
