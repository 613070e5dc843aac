package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

// Paragraph style ids from the default godocx template.
const (
	styleListParagraph = "ListParagraph"
	styleQuote         = "Quote"
	styleCode          = "MacroText"
)

// DOCX converts markdown to a Word document. Every level-2 heading after the
// first starts a new page, matching the HTML print stylesheet.
func DOCX(md, title string) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("failed to create docx: %w", err)
	}
	if _, err := doc.AddHeading(title, 0); err != nil {
		return nil, fmt.Errorf("failed to add title: %w", err)
	}

	firstH2 := true
	for _, b := range parseBlocks(md) {
		switch b.Kind {
		case blockHeading:
			if b.Level == 2 {
				if !firstH2 {
					doc.AddPageBreak()
				}
				firstH2 = false
			}
			if err := addHeading(doc, b.Text(), b.Level); err != nil {
				return nil, err
			}
		case blockListItem:
			p := doc.AddParagraph(strings.Repeat("    ", b.Level))
			p.Style(styleListParagraph)
			if b.Marker != "" {
				p.AddText(b.Marker + " ")
			}
			addRuns(p, b.Runs)
		case blockQuote:
			p := doc.AddParagraph("")
			p.Style(styleQuote)
			addRuns(p, b.Runs)
		case blockCode:
			p := doc.AddParagraph(b.Text())
			p.Style(styleCode)
		case blockRule:
			doc.AddParagraph("⸻")
		default:
			addRuns(doc.AddParagraph(""), b.Runs)
		}
	}
	return writeDOCX(doc)
}

// DOCXPlain writes the title and then one unstyled paragraph per markdown line.
func DOCXPlain(md, title string) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("failed to create docx: %w", err)
	}
	if _, err := doc.AddHeading(title, 0); err != nil {
		return nil, fmt.Errorf("failed to add title: %w", err)
	}
	for _, line := range strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n") {
		doc.AddParagraph(line)
	}
	return writeDOCX(doc)
}

func addHeading(doc *docx.RootDoc, text string, level int) error {
	var err error
	switch level {
	case 1:
		_, err = doc.AddHeading(text, 1)
	case 2:
		_, err = doc.AddHeading(text, 2)
	default:
		_, err = doc.AddHeading(text, 3)
	}
	if err != nil {
		return fmt.Errorf("failed to add heading %q: %w", text, err)
	}
	return nil
}

func addRuns(p *docx.Paragraph, runs []run) {
	for _, r := range runs {
		text := p.AddText(r.Text)
		if r.Bold {
			text.Bold(true)
		}
		if r.Italic {
			text.Italic(true)
		}
	}
}

func writeDOCX(doc *docx.RootDoc) ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write docx: %w", err)
	}
	return buf.Bytes(), nil
}
