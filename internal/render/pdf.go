package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	pdfMargin   = 54.0
	bodySize    = 12.0
	titleSize   = 18.0
	headingSize = 14.0
	codeSize    = 10.0
	lineGap     = 14.0
	listIndent  = 18.0
	fontFamily  = "go"
)

// pdfEpoch is stamped as creation and modification date.
var pdfEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// measurer reports text widths in points from the embedded Go fonts.
type measurer struct {
	regular *opentype.Font
	bold    *opentype.Font
	faces   map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size float64
}

func newMeasurer() (*measurer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &measurer{regular: regular, bold: bold, faces: make(map[faceKey]font.Face)}, nil
}

func (m *measurer) width(s string, bold bool, size float64) (float64, error) {
	key := faceKey{bold: bold, size: size}
	face, ok := m.faces[key]
	if !ok {
		f := m.regular
		if bold {
			f = m.bold
		}
		var err error
		face, err = opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
		if err != nil {
			return 0, fmt.Errorf("failed to create font face: %w", err)
		}
		m.faces[key] = face
	}
	return float64(font.MeasureString(face, s)) / 64, nil
}

// wrap breaks s into lines no wider than maxWidth. Each line is the longest
// fitting prefix, found by binary search, cut back to its last space.
func (m *measurer) wrap(s string, bold bool, size, maxWidth float64) ([]string, error) {
	var lines []string
	runes := []rune(strings.TrimSpace(s))
	for len(runes) > 0 {
		w, err := m.width(string(runes), bold, size)
		if err != nil {
			return nil, err
		}
		if w <= maxWidth {
			lines = append(lines, string(runes))
			break
		}

		lo, hi := 1, len(runes)
		for lo < hi {
			mid := (lo + hi + 1) / 2
			w, err := m.width(string(runes[:mid]), bold, size)
			if err != nil {
				return nil, err
			}
			if w <= maxWidth {
				lo = mid
			} else {
				hi = mid - 1
			}
		}

		cut := lo
		for i := lo; i > 0; i-- {
			if i < len(runes) && unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		lines = append(lines, strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace))
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	return lines, nil
}

type pdfLayout struct {
	pdf    *fpdf.Fpdf
	m      *measurer
	y      float64
	bottom float64
	width  float64
}

func (l *pdfLayout) write(s string, bold bool, size, indent float64) error {
	lines, err := l.m.wrap(s, bold, size, l.width-indent)
	if err != nil {
		return err
	}
	style := ""
	if bold {
		style = "B"
	}
	l.pdf.SetFont(fontFamily, style, size)

	height := lineGap
	if size+4 > height {
		height = size + 4
	}
	for _, line := range lines {
		if l.y+height > l.bottom {
			l.pdf.AddPage()
			l.y = pdfMargin
		}
		l.pdf.Text(pdfMargin+indent, l.y+size, line)
		l.y += height
	}
	return nil
}

// ManualPDF lays out markdown as plain text pages with the Go fonts. Output
// is byte-identical for identical input.
func ManualPDF(md, title string) ([]byte, error) {
	m, err := newMeasurer()
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetModificationDate(pdfEpoch)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle(title, true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", gobold.TTF)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	l := &pdfLayout{
		pdf:    pdf,
		m:      m,
		y:      pdfMargin,
		bottom: pageH - pdfMargin,
		width:  pageW - 2*pdfMargin,
	}

	if title != "" {
		if err := l.write(title, true, titleSize, 0); err != nil {
			return nil, err
		}
		l.y += lineGap / 2
	}

	for _, b := range parseBlocks(md) {
		txt := b.Text()
		switch b.Kind {
		case blockHeading:
			l.y += lineGap / 2
			size := headingSize
			if b.Level == 1 {
				size = titleSize - 2
			}
			err = l.write(txt, true, size, 0)
		case blockListItem:
			if b.Marker != "" {
				txt = b.Marker + " " + txt
			}
			err = l.write(txt, false, bodySize, listIndent*float64(b.Level+1))
		case blockQuote:
			err = l.write(txt, false, bodySize, listIndent)
		case blockCode:
			err = l.write(txt, false, codeSize, listIndent)
		case blockRule:
			l.y += lineGap
		default:
			err = l.write(txt, false, bodySize, 0)
		}
		if err != nil {
			return nil, err
		}
		if b.Kind != blockCode {
			l.y += lineGap / 2
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to lay out pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
