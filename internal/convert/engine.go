// Package convert turns uploaded documents into plain text and DOCX.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/gen2brain/go-fitz"
)

// ErrUnreadable is returned for corrupt or unsupported document bytes.
var ErrUnreadable = errors.New("unreadable document")

// pageSeparator joins the text of consecutive pages.
const pageSeparator = "\n\n"

// pdfMagic must appear within the first headerWindow bytes.  Readers
// tolerate leading junk before it, so the check is not anchored at 0.
var pdfMagic = []byte("%PDF-")

const headerWindow = 1024

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Extraction is the result of a full parse.
type Extraction struct {
	Text      string
	PageCount int
}

// Engine is stateless apart from its extension allow-list and is safe for
// concurrent use.
type Engine struct {
	extensions map[string]bool
}

// NewEngine accepts files whose extension is in exts (case-insensitive,
// leading dot optional).  With no exts only ".pdf" is accepted.
func NewEngine(exts ...string) *Engine {
	if len(exts) == 0 {
		exts = []string{".pdf"}
	}
	e := &Engine{extensions: make(map[string]bool, len(exts))}
	for _, x := range exts {
		x = strings.ToLower(strings.TrimSpace(x))
		if x == "" {
			continue
		}
		if !strings.HasPrefix(x, ".") {
			x = "." + x
		}
		e.extensions[x] = true
	}
	return e
}

// Accepts reports whether filename has an accepted extension.
func (e *Engine) Accepts(filename string) bool {
	return e.extensions[strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))]
}

// Extract opens data, counts its pages and concatenates their text in page
// order.  Every page is parsed; the page count is never estimated.  Pages
// with no text contribute nothing to Text but still count.
func (e *Engine) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if len(data) == 0 {
		return Extraction{}, fmt.Errorf("%w: empty input", ErrUnreadable)
	}
	if !hasPDFHeader(data) {
		return Extraction{}, fmt.Errorf("%w: missing %%PDF- header", ErrUnreadable)
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n < 0 {
		return Extraction{}, fmt.Errorf("%w: invalid page tree", ErrUnreadable)
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return Extraction{}, err
		}
		text, err := doc.Text(i)
		if err != nil {
			return Extraction{}, fmt.Errorf("%w: page %d: %v", ErrUnreadable, i+1, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return Extraction{Text: strings.TrimSpace(strings.Join(parts, pageSeparator)), PageCount: n}, nil
}

// hasPDFHeader reports whether data looks like a PDF.  MuPDF sniffs the
// format from content and would happily open SVG, EPUB or CBZ bytes.
func hasPDFHeader(data []byte) bool {
	head := data
	if len(head) > headerWindow {
		head = head[:headerWindow]
	}
	return bytes.Contains(head, pdfMagic)
}

// Paragraphs splits text on blank lines and drops empty segments.  Line
// breaks inside a segment collapse to single spaces.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, seg := range blankLine.Split(text, -1) {
		seg = strings.Join(strings.Fields(seg), " ")
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// ToDocx renders text as a DOCX document with one paragraph per segment.
// The body is a pure function of text; container metadata may differ
// between calls.
func (e *Engine) ToDocx(text string) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()
	for _, p := range Paragraphs(text) {
		doc.AddParagraph().AddText(p)
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}
