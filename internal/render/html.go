package render

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var mdConverter = goldmark.New(goldmark.WithExtensions(extension.GFM))

const printCSS = `
  @page { size: Letter; margin: %s; }
  body {
    font-family: system-ui, -apple-system, "Segoe UI", Roboto, "Noto Sans", Arial, sans-serif;
    font-size: 12pt;
    line-height: %s;
    color: #111;
    max-width: 7in;
    margin: 0 auto;
  }
  h1 { font-size: 22pt; margin: 0 0 12pt; }
  h2 { font-size: 16pt; margin-top: 0; break-before: page; page-break-before: always; }
  h2:first-of-type { break-before: avoid; page-break-before: avoid; }
  h3 { font-size: 13pt; }
  img, table, figure, pre, blockquote { break-inside: avoid; page-break-inside: avoid; }
  img { max-width: 100%%; height: auto; display: block; margin: 12pt auto; }
  table { border-collapse: collapse; width: 100%%; }
  th, td { border: 1px solid #999; padding: 4pt 6pt; }
  pre { background: #f5f5f5; padding: 8pt; white-space: pre-wrap; }
`

// HTML converts markdown to a standalone, print-styled page.
func HTML(md, title string, spacious bool) (string, error) {
	var body bytes.Buffer
	if err := mdConverter.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}

	margin, lineHeight := "0.9in", "1.55"
	if spacious {
		margin, lineHeight = "1.1in", "1.85"
	}

	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<style>%s</style>\n", fmt.Sprintf(printCSS, margin, lineHeight))
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}
