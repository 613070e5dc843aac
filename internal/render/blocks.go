package render

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockListItem
	blockQuote
	blockCode
	blockRule
)

// run is a span of text sharing one style.
type run struct {
	Text   string
	Bold   bool
	Italic bool
}

// block is one layout unit shared by the PDF and DOCX writers.
type block struct {
	Kind   blockKind
	Level  int    // heading level or list depth
	Marker string // list bullet or number, first paragraph of an item only
	Runs   []run
}

func (b block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return strings.TrimSpace(sb.String())
}

// parseBlocks flattens markdown into blocks.
func parseBlocks(md string) []block {
	src := []byte(md)
	root := mdConverter.Parser().Parse(text.NewReader(src))
	var out []block
	collectBlocks(root, src, &out)
	return out
}

func collectBlocks(n ast.Node, src []byte, out *[]block) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Heading:
			*out = append(*out, block{Kind: blockHeading, Level: node.Level, Runs: inlineRuns(node, src)})
		case *ast.Paragraph, *ast.TextBlock:
			*out = append(*out, block{Kind: blockParagraph, Runs: inlineRuns(node, src)})
		case *ast.List:
			collectList(node, src, 0, out)
		case *ast.Blockquote:
			var inner []block
			collectBlocks(node, src, &inner)
			for _, b := range inner {
				if b.Kind == blockParagraph {
					b.Kind = blockQuote
				}
				*out = append(*out, b)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				line := strings.TrimRight(string(seg.Value(src)), "\n")
				*out = append(*out, block{Kind: blockCode, Runs: []run{{Text: line}}})
			}
		case *ast.ThematicBreak:
			*out = append(*out, block{Kind: blockRule})
		case *east.Table:
			collectTable(node, src, out)
		case *ast.HTMLBlock:
		default:
			collectBlocks(c, src, out)
		}
	}
}

func collectList(l *ast.List, src []byte, depth int, out *[]block) {
	number := l.Start
	if number == 0 {
		number = 1
	}
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if l.IsOrdered() {
			marker = strconv.Itoa(number) + "."
			number++
		}
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.List:
				collectList(node, src, depth+1, out)
			case *ast.Paragraph, *ast.TextBlock:
				b := block{Kind: blockListItem, Level: depth, Runs: inlineRuns(node, src)}
				if first {
					b.Marker = marker
					first = false
				}
				*out = append(*out, b)
			}
		}
	}
}

func collectTable(t *east.Table, src []byte, out *[]block) {
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		_, header := row.(*east.TableHeader)
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, plainText(cell, src))
		}
		*out = append(*out, block{Kind: blockParagraph, Runs: []run{{Text: strings.Join(cells, " | "), Bold: header}}})
	}
}

func inlineRuns(n ast.Node, src []byte) []run {
	var runs []run
	var walk func(n ast.Node, bold, italic bool)
	walk = func(n ast.Node, bold, italic bool) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Text:
				s := string(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					s += " "
				}
				runs = appendRun(runs, run{Text: s, Bold: bold, Italic: italic})
			case *ast.String:
				runs = appendRun(runs, run{Text: string(node.Value), Bold: bold, Italic: italic})
			case *ast.Emphasis:
				walk(node, bold || node.Level >= 2, italic || node.Level == 1)
			case *ast.Image:
				label := "[Figure]"
				if alt := plainText(node, src); alt != "" {
					label = "[" + alt + "]"
				}
				runs = appendRun(runs, run{Text: label, Italic: true})
			case *ast.AutoLink:
				runs = appendRun(runs, run{Text: string(node.Label(src)), Bold: bold, Italic: italic})
			case *ast.RawHTML:
			default:
				walk(c, bold, italic)
			}
		}
	}
	walk(n, false, false)
	return runs
}

func appendRun(runs []run, r run) []run {
	if r.Text == "" {
		return runs
	}
	if n := len(runs); n > 0 && runs[n-1].Bold == r.Bold && runs[n-1].Italic == r.Italic {
		runs[n-1].Text += r.Text
		return runs
	}
	return append(runs, r)
}

func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	for _, r := range inlineRuns(n, src) {
		sb.WriteString(r.Text)
	}
	return strings.TrimSpace(sb.String())
}
