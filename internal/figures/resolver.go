package figures

import (
	"context"
	"strings"
	"time"

	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/service"
)

// Config bounds figure generation.
type Config struct {
	MaxImages  int // images generated per chapter
	MinFigures int // placeholders guaranteed per chapter
}

// Report summarizes one resolution.
type Report struct {
	Descriptions []string
	Generated    int
	Failed       int
	Skipped      int // over the image cap
	Citations    []CitationCheck
}

// Resolver turns GENERATE placeholders into images and appends reference
// sections. works may be nil to skip citation checks.
type Resolver struct {
	images service.ImageGenerator
	works  service.WorkSearcher
	cfg    Config
}

func NewResolver(images service.ImageGenerator, works service.WorkSearcher, cfg Config) *Resolver {
	if cfg.MaxImages < 0 {
		cfg.MaxImages = 0
	}
	if cfg.MinFigures <= 0 {
		cfg.MinFigures = 2
	}
	return &Resolver{images: images, works: works, cfg: cfg}
}

// Resolve returns the finished markdown. It never fails: image and lookup
// errors degrade to text.
func (r *Resolver) Resolve(ctx context.Context, md string) (string, *Report) {
	md = EnsurePlaceholders(md, r.cfg.MinFigures)
	descs := UniqueDescriptions(md)
	report := &Report{Descriptions: descs}

	urls := make(map[string]string, len(descs))
	for i, desc := range descs {
		if i >= r.cfg.MaxImages || r.images == nil {
			report.Skipped++
			continue
		}
		start := time.Now()
		u, err := r.images.Generate(ctx, desc)
		entry := logger.With(logger.Fields{}).WithDuration(time.Since(start).Milliseconds())
		if err != nil || u == "" {
			report.Failed++
			entry.Warn(ctx, "[figures] image generation failed for %q: %v", desc, err)
			continue
		}
		urls[desc] = u
		report.Generated++
		entry.Debug(ctx, "[figures] image generated for %q", desc)
	}

	md = Substitute(md, urls)
	md = EnsureReferences(md)

	if r.works != nil {
		if cites := FindCitations(md); len(cites) > 0 {
			report.Citations = VerifyCitations(ctx, r.works, cites)
			md = strings.TrimRight(md, "\n") + "\n\n" + VerificationReport(report.Citations)
		}
	}
	return md, report
}
