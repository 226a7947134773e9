package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// ErrNoText is returned by a parser that ran successfully but found no text.
var ErrNoText = errors.New("no text extracted")

// Parser extracts raw documents from a file on disk. Returned documents carry only
// parser-level metadata such as page; the loader stamps the rest.
type Parser interface {
	Parse(ctx context.Context, path string) ([]domain.Document, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, path string) ([]domain.Document, error)

func (f ParserFunc) Parse(ctx context.Context, path string) ([]domain.Document, error) {
	return f(ctx, path)
}

// Tools names the external binaries used by the PDF and image parsers.
type Tools struct {
	Runner      CommandRunner
	PDFToText   string
	PDFToPPM    string
	Tesseract   string
	OCRLanguage string
}

func (t Tools) withDefaults() Tools {
	if t.Runner == nil {
		t.Runner = ExecRunner{}
	}
	if t.PDFToText == "" {
		t.PDFToText = "pdftotext"
	}
	if t.PDFToPPM == "" {
		t.PDFToPPM = "pdftoppm"
	}
	if t.Tesseract == "" {
		t.Tesseract = "tesseract"
	}
	if t.OCRLanguage == "" {
		t.OCRLanguage = "eng"
	}
	return t
}

// Registry maps every supported Format to exactly one Parser.
type Registry struct {
	parsers map[domain.Format]Parser
}

// NewRegistry registers the built-in parser for each format. PDFs fall back to OCR
// once when text extraction fails.
func NewRegistry(tools Tools) *Registry {
	tools = tools.withDefaults()
	ocr := NewOCRPDFParser(tools)

	r := &Registry{parsers: make(map[domain.Format]Parser, len(domain.Formats()))}
	r.parsers[domain.FormatText] = TextParser{}
	r.parsers[domain.FormatDOCX] = DOCXParser{}
	r.parsers[domain.FormatPPTX] = PPTXParser{}
	r.parsers[domain.FormatPDF] = WithFallback(NewPDFParser(tools), ocr)
	r.parsers[domain.FormatImage] = NewImageParser(tools)
	return r
}

// Register replaces the parser for a format.
func (r *Registry) Register(format domain.Format, p Parser) error {
	if !format.IsValid() {
		return fmt.Errorf("cannot register parser: %w: %q", domain.ErrUnsupportedFormat, format)
	}
	r.parsers[format] = p
	return nil
}

// Parser returns the parser registered for format.
func (r *Registry) Parser(format domain.Format) (Parser, bool) {
	p, ok := r.parsers[format]
	return p, ok
}

type fallbackParser struct {
	primary  Parser
	fallback Parser
}

// WithFallback tries primary, then fallback exactly once if primary fails.
func WithFallback(primary, fallback Parser) Parser {
	return fallbackParser{primary: primary, fallback: fallback}
}

func (p fallbackParser) Parse(ctx context.Context, path string) ([]domain.Document, error) {
	docs, err := p.primary.Parse(ctx, path)
	if err == nil {
		return docs, nil
	}

	docs, fbErr := p.fallback.Parse(ctx, path)
	if fbErr != nil {
		return nil, fmt.Errorf("%w; fallback: %v", err, fbErr)
	}
	return docs, nil
}
