package export

import (
	"bytes"
	"fmt"
	"html"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const pdfFont = "Arial"

// RenderPDF lays out a markdown report on A4 pages
func RenderPDF(markdown, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	pdf.SetFont(pdfFont, "", 9)

	md := goldmark.New(goldmark.WithExtensions(extension.Strikethrough))
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	r := &pdfRenderer{
		pdf:    pdf,
		source: source,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		size:   9,
	}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", err)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string
	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(pdfFont, style, r.size)
}

func (r *pdfRenderer) write(s string) {
	r.pdf.Write(4.5, r.tr(s))
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			if r.listLevel == 0 {
				r.pdf.Ln(6)
			}
		}
	case *ast.Text:
		if entering {
			r.write(plainText(node.Segment.Value(r.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.write(" ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(6)
			}
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(4.5)
			r.pdf.SetX(12 + float64(r.listLevel)*5)
			r.write("- ")
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(12, r.pdf.GetY(), 198, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) {
	if !entering {
		r.pdf.Ln(7)
		r.updateFont()
		return
	}
	size := 10.0
	switch n.Level {
	case 1:
		size = 16
	case 2:
		size = 13
	case 3:
		size = 11
	}
	if n.Level <= 2 {
		r.pdf.Ln(4)
	}
	r.pdf.SetFont(pdfFont, "B", size)
}

// plainText undoes markdown backslash escapes and HTML entities
func plainText(raw []byte) string {
	return html.UnescapeString(string(util.UnescapePunctuations(raw)))
}
