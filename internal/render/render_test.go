package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/timmy/coursegen/internal/domain"
)

const sampleChapter = `# Week 1: Fractions via Soccer

Intro paragraph with **bold** and *italic* text (Smith, 2019).

## Warm-up

- Count the players
- Split the field
  1. Halves
  2. Quarters

## Practice

> Remember: a fraction is a part of a whole.

| Team | Goals |
|------|-------|
| A    | 3     |

![A soccer field split into quarters](https://example.com/field.png)

## References

- Smith, J. (2019). *Fractions on the Field*.
`

func TestRenderIsDeterministic(t *testing.T) {
	r := NewRenderer(Config{})
	ctx := context.Background()

	for _, format := range []string{FormatMarkdown, FormatHTML, FormatPDF} {
		t.Run(format, func(t *testing.T) {
			first, err := r.Render(ctx, sampleChapter, "Fractions via Soccer", Options{Format: format})
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			second, err := r.Render(ctx, sampleChapter, "Fractions via Soccer", Options{Format: format})
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if !bytes.Equal(first.Bytes, second.Bytes) {
				t.Errorf("Render(%s) produced different bytes for identical input", format)
			}
			if first.Extension != format {
				t.Errorf("Extension = %q, want %q", first.Extension, format)
			}
			if first.ContentType != ContentType(format) {
				t.Errorf("ContentType = %q, want %q", first.ContentType, ContentType(format))
			}
		})
	}
}

func TestRenderDOCX(t *testing.T) {
	r := NewRenderer(Config{})
	for _, raw := range []bool{false, true} {
		doc, err := r.Render(context.Background(), sampleChapter, "Fractions", Options{Format: FormatDOCX, DocxRaw: raw})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !bytes.HasPrefix(doc.Bytes, []byte("PK")) {
			t.Errorf("docx output is not a zip package")
		}
		if doc.Extension != FormatDOCX || doc.ContentType != ContentType(FormatDOCX) {
			t.Errorf("docx document = %s %s", doc.Extension, doc.ContentType)
		}
	}
}

func TestRenderPDFHeader(t *testing.T) {
	r := NewRenderer(Config{})
	for _, raw := range []bool{false, true} {
		doc, err := r.Render(context.Background(), sampleChapter, "Fractions", Options{Format: FormatPDF, RawPDF: raw})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !bytes.HasPrefix(doc.Bytes, []byte("%PDF-")) {
			t.Errorf("pdf output starts with %q", doc.Bytes[:8])
		}
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	r := NewRenderer(Config{})
	_, err := r.Render(context.Background(), sampleChapter, "x", Options{Format: "epub"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Render(epub) error = %v, want ValidationError", err)
	}
}

func TestHTMLPrintStyles(t *testing.T) {
	out, err := HTML(sampleChapter, "Fractions & Soccer", false)
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	for _, want := range []string{
		"<title>Fractions &amp; Soccer</title>",
		"page-break-before: always",
		"h2:first-of-type",
		"page-break-inside: avoid",
		"<table>",
		"line-height: 1.55",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML() missing %q", want)
		}
	}

	spacious, err := HTML(sampleChapter, "x", true)
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if !strings.Contains(spacious, "line-height: 1.85") {
		t.Errorf("spacious HTML missing wider line height")
	}
}

func readDocument(t *testing.T, b []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	names := make(map[string]bool)
	var doc string
	for _, f := range zr.File {
		names[f.Name] = true
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open document.xml: %v", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read document.xml: %v", err)
		}
		doc = string(data)
	}
	for _, want := range []string{"[Content_Types].xml", "_rels/.rels", "word/styles.xml", "word/document.xml"} {
		if !names[want] {
			t.Errorf("docx missing part %s", want)
		}
	}
	return doc
}

var (
	boldRunRe   = regexp.MustCompile(`<w:b[ />]`)
	italicRunRe = regexp.MustCompile(`<w:i[ />]`)
	pageBreakRe = regexp.MustCompile(`w:type="page"`)
)

func TestDOCXStructure(t *testing.T) {
	b, err := DOCX(sampleChapter, "Fractions & Soccer")
	if err != nil {
		t.Fatalf("DOCX() error = %v", err)
	}
	doc := readDocument(t, b)
	for _, want := range []string{
		`"Title"`,
		"Fractions &amp; Soccer",
		`"Heading1"`,
		`"Heading2"`,
		`"ListParagraph"`,
		`"Quote"`,
		"Count the players",
		"1. ",
		"Team | Goals",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document.xml missing %q", want)
		}
	}
	if !boldRunRe.MatchString(doc) {
		t.Error("document.xml has no bold run")
	}
	if !italicRunRe.MatchString(doc) {
		t.Error("document.xml has no italic run")
	}
	// Warm-up stays on the first page; Practice and References break.
	if got := len(pageBreakRe.FindAllString(doc, -1)); got != 2 {
		t.Errorf("page breaks = %d, want 2", got)
	}
}

func TestDOCXPlainKeepsLines(t *testing.T) {
	b, err := DOCXPlain("## Heading\n**not bold**", "T")
	if err != nil {
		t.Fatalf("DOCXPlain() error = %v", err)
	}
	doc := readDocument(t, b)
	if !strings.Contains(doc, "## Heading") || !strings.Contains(doc, "**not bold**") {
		t.Errorf("DOCXPlain() should keep raw markdown lines, got %s", doc)
	}
	if strings.Contains(doc, "Heading2") || boldRunRe.MatchString(doc) {
		t.Errorf("DOCXPlain() should not apply heading or run styles")
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name  string
		week  int
		title string
		want  string
	}{
		{name: "week prefix", week: 1, title: "Week 1: Fractions via Soccer (Grades 6–8)", want: "chapter_week1_Fractions_via_Soccer_Grades_68"},
		{name: "chapter prefix with dash", week: 3, title: "Chapter 3 - Ratios!", want: "chapter_week3_Ratios"},
		{name: "no separator keeps words", week: 4, title: "Week 4 Wonders", want: "chapter_week4_Week_4_Wonders"},
		{name: "empty", week: 2, title: "", want: "chapter_week2_chapter"},
		{name: "only symbols", week: 5, title: "Week 5: ???", want: "chapter_week5_chapter"},
		{name: "long", week: 6, title: strings.Repeat("a", 120), want: "chapter_week6_" + strings.Repeat("a", 80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.week, tt.title); got != tt.want {
				t.Errorf("Filename(%d, %q) = %q, want %q", tt.week, tt.title, got, tt.want)
			}
		})
	}
}

func TestWrapFitsWidth(t *testing.T) {
	m, err := newMeasurer()
	if err != nil {
		t.Fatalf("newMeasurer() error = %v", err)
	}
	text := strings.Repeat("Fractions describe parts of a whole field. ", 12)
	lines, err := m.wrap(text, false, bodySize, 200)
	if err != nil {
		t.Fatalf("wrap() error = %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("wrap() returned %d lines, want several", len(lines))
	}
	for _, line := range lines {
		w, err := m.width(line, false, bodySize)
		if err != nil {
			t.Fatalf("width() error = %v", err)
		}
		if w > 200 {
			t.Errorf("line %q is %.1fpt wide, want <= 200", line, w)
		}
	}
	if got := strings.Join(lines, " "); got != strings.TrimSpace(text) {
		t.Errorf("wrap() lost text: %q", got)
	}
}

func TestParseBlocks(t *testing.T) {
	blocks := parseBlocks(sampleChapter)
	var headings, items, quotes int
	for _, b := range blocks {
		switch b.Kind {
		case blockHeading:
			headings++
		case blockListItem:
			items++
		case blockQuote:
			quotes++
		}
	}
	if headings != 4 {
		t.Errorf("headings = %d, want 4", headings)
	}
	if items != 5 {
		t.Errorf("list items = %d, want 5", items)
	}
	if quotes != 1 {
		t.Errorf("quotes = %d, want 1", quotes)
	}
}
