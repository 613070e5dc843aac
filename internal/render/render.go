// Package render turns chapter markdown into downloadable documents.
package render

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/logger"
)

// Formats.
const (
	FormatMarkdown = "md"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
	FormatDOCX     = "docx"
)

// Options select the output format and its variants.
type Options struct {
	Format   string
	Spacious bool // wider margins and line height
	DocxRaw  bool // one paragraph per markdown line
	RawPDF   bool // skip the browser and lay out text directly
}

// Document is a rendered file.
type Document struct {
	Bytes       []byte
	ContentType string
	Extension   string
}

// Config configures the Renderer.
type Config struct {
	ChromePath     string
	BrowserTimeout time.Duration
}

// Renderer renders markdown. Without a browser path, PDFs use manual layout.
type Renderer struct {
	chromePath string
	timeout    time.Duration
}

func NewRenderer(cfg Config) *Renderer {
	timeout := cfg.BrowserTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Renderer{chromePath: cfg.ChromePath, timeout: timeout}
}

// Render produces a document in opts.Format. The same inputs give the same
// bytes for md, html and manually laid out pdf; docx packages carry
// their own timestamps.
func (r *Renderer) Render(ctx context.Context, markdown, title string, opts Options) (*Document, error) {
	format := strings.ToLower(opts.Format)
	doc := &Document{ContentType: ContentType(format), Extension: format}

	switch format {
	case FormatMarkdown:
		doc.Bytes = []byte(markdown)

	case FormatHTML:
		html, err := HTML(markdown, title, opts.Spacious)
		if err != nil {
			return nil, err
		}
		doc.Bytes = []byte(html)

	case FormatPDF:
		b, err := r.pdf(ctx, markdown, title, opts)
		if err != nil {
			return nil, err
		}
		doc.Bytes = b

	case FormatDOCX:
		var (
			b   []byte
			err error
		)
		if opts.DocxRaw {
			b, err = DOCXPlain(markdown, title)
		} else {
			b, err = DOCX(markdown, title)
		}
		if err != nil {
			return nil, err
		}
		doc.Bytes = b

	default:
		return nil, &domain.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q", opts.Format)}
	}
	return doc, nil
}

func (r *Renderer) pdf(ctx context.Context, markdown, title string, opts Options) ([]byte, error) {
	if r.chromePath != "" && !opts.RawPDF {
		html, err := HTML(markdown, title, opts.Spacious)
		if err != nil {
			return nil, err
		}
		b, err := PrintPDF(ctx, r.chromePath, r.timeout, html)
		if err == nil {
			return b, nil
		}
		logger.FromContext(ctx).WithError(err).Warn("[render] browser print failed, using manual layout")
	}
	return ManualPDF(markdown, title)
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch format {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "json":
		return "application/json"
	}
	return "application/octet-stream"
}

var (
	titlePrefixRe = regexp.MustCompile(`(?i)^\s*(week|chapter)\s*\d+\s*[:.\-–]\s*`)
	unsafeCharRe  = regexp.MustCompile(`[^\w\s.-]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

const maxSlugLen = 80

// Filename derives chapter_week{N}_{slug} from a chapter title.
func Filename(week int, title string) string {
	slug := titlePrefixRe.ReplaceAllString(title, "")
	slug = unsafeCharRe.ReplaceAllString(slug, "")
	slug = strings.TrimSpace(slug)
	slug = whitespaceRe.ReplaceAllString(slug, "_")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	if slug == "" {
		slug = "chapter"
	}
	return fmt.Sprintf("chapter_week%d_%s", week, slug)
}
