package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/figures"
	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/prompts"
	"github.com/timmy/coursegen/internal/render"
	"github.com/timmy/coursegen/internal/repository"
	"github.com/timmy/coursegen/internal/service"
	"github.com/timmy/coursegen/internal/storage"
)

// ExportConfig configures the ExportHandler.
type ExportConfig struct {
	Bucket      string
	MaxAttempts int // chapter text attempts before the job fails
}

// ExportHandler runs chapter export jobs: chapter text, figures and
// citations, rendering, upload.
type ExportHandler struct {
	llm         service.TextGenerator
	resolver    *figures.Resolver
	renderer    *render.Renderer
	curricula   *repository.CurriculumRepository
	storage     storage.ObjectStorage
	bucket      string
	maxAttempts int
}

func NewExportHandler(
	llm service.TextGenerator,
	resolver *figures.Resolver,
	renderer *render.Renderer,
	curricula *repository.CurriculumRepository,
	objectStorage storage.ObjectStorage,
	cfg ExportConfig,
) *ExportHandler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	return &ExportHandler{
		llm:         llm,
		resolver:    resolver,
		renderer:    renderer,
		curricula:   curricula,
		storage:     objectStorage,
		bucket:      cfg.Bucket,
		maxAttempts: cfg.MaxAttempts,
	}
}

func (h *ExportHandler) Execute(ctx context.Context, job *domain.Job) (*domain.JobOutput, error) {
	in, ok := job.Input.(*domain.ExportInput)
	if !ok {
		return nil, &domain.ValidationError{Field: "input", Message: fmt.Sprintf("expected export input, got %T", job.Input)}
	}
	in.ApplyDefaults()

	rec, err := h.curricula.Get(ctx, job.OwnerID, in.CurriculumID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("curriculum %s referenced by chapter job does not exist: %w", in.CurriculumID, err)
	}
	if err != nil {
		return nil, err
	}
	source := rec.WithDefaults()

	md, err := h.writeChapter(ctx, &source, in)
	if err != nil {
		return nil, err
	}

	md, report := h.resolver.Resolve(ctx, md)
	if in.Debug {
		md = strings.TrimRight(md, "\n") + "\n\n" + debugAppendix(report)
	}

	doc, err := h.renderer.Render(ctx, md, in.ChapterTitle, render.Options{
		Format:   in.Format,
		Spacious: in.Spacious,
		DocxRaw:  in.DocxRaw,
		RawPDF:   in.RawPDF,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", in.Format, err)
	}

	filename := render.Filename(in.Week, in.ChapterTitle) + "." + doc.Extension
	key := ExportKey(job.OwnerID, in.CurriculumID, in.Week, filename)
	if err := upload(ctx, h.storage, key, doc.Bytes, doc.ContentType); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldJobID: job.JobID,
		"format":          in.Format,
		"figures":         report.Generated,
		"citations":       len(report.Citations),
	}).WithSize(len(doc.Bytes)).Info(ctx, "[jobs] chapter exported to %s", key)

	return &domain.JobOutput{
		Bucket:   h.bucket,
		Key:      key,
		Format:   in.Format,
		Filename: filename,
	}, nil
}

// writeChapter asks the backend for the chapter markdown, retrying errors
// and empty replies up to maxAttempts.
func (h *ExportHandler) writeChapter(ctx context.Context, rec *domain.CurriculumRecord, in *domain.ExportInput) (string, error) {
	req := prompts.ChapterRequest{
		Subject:      rec.Subject,
		AgeRange:     rec.AgeRange,
		ChapterTitle: in.ChapterTitle,
		Passion:      rec.Passion,
		Likes:        rec.Likes,
	}
	if len(req.Likes) > domain.MaxPromptLikes {
		req.Likes = req.Likes[:domain.MaxPromptLikes]
	}
	if week, ok := rec.Week(in.Week); ok {
		req.WeekTitle = week.Title
		req.WeekTopics = week.Topics
	}
	prompt := prompts.ChapterUserPrompt(req)

	var lastErr error
	for n := 1; n <= h.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		start := time.Now()
		md, err := h.llm.Complete(ctx, prompts.ChapterSystemPrompt, prompt, false)
		entry := logger.With(logger.Fields{}).WithAttempt(n).WithDuration(time.Since(start).Milliseconds())
		if err == nil && strings.TrimSpace(md) == "" {
			err = fmt.Errorf("%w: empty chapter text", domain.ErrBackendUnavailable)
		}
		if err != nil {
			lastErr = err
			entry.Warn(ctx, "[jobs] chapter attempt failed: %v", err)
			continue
		}
		entry.WithSize(len(md)).Debug(ctx, "[jobs] chapter text received")
		return md, nil
	}
	return "", fmt.Errorf("chapter generation failed after %d attempts: %w", h.maxAttempts, lastErr)
}

func debugAppendix(r *figures.Report) string {
	var b strings.Builder
	b.WriteString("## Debug\n\n")
	fmt.Fprintf(&b, "- Figures requested: %d\n", len(r.Descriptions))
	fmt.Fprintf(&b, "- Images generated: %d, failed: %d, skipped: %d\n", r.Generated, r.Failed, r.Skipped)
	for _, d := range r.Descriptions {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	return b.String()
}
