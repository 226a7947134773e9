package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// PDFParser extracts the text layer with pdftotext, one document per page.
type PDFParser struct {
	runner CommandRunner
	bin    string
}

func NewPDFParser(tools Tools) *PDFParser {
	tools = tools.withDefaults()
	return &PDFParser{runner: tools.Runner, bin: tools.PDFToText}
}

func (p *PDFParser) Parse(ctx context.Context, path string) ([]domain.Document, error) {
	out, err := p.runner.Run(ctx, p.bin, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdf text extraction failed: %w", err)
	}

	docs := pagesToDocuments(strings.Split(string(out), "\f"))
	if len(docs) == 0 {
		return nil, ErrNoText
	}
	return docs, nil
}

// OCRPDFParser rasterises each page with pdftoppm and reads it with tesseract.
type OCRPDFParser struct {
	runner    CommandRunner
	pdftoppm  string
	tesseract string
	language  string
}

func NewOCRPDFParser(tools Tools) *OCRPDFParser {
	tools = tools.withDefaults()
	return &OCRPDFParser{
		runner:    tools.Runner,
		pdftoppm:  tools.PDFToPPM,
		tesseract: tools.Tesseract,
		language:  tools.OCRLanguage,
	}
}

func (p *OCRPDFParser) Parse(ctx context.Context, path string) ([]domain.Document, error) {
	workDir, err := os.MkdirTemp(filepath.Dir(path), "ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create ocr work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	prefix := filepath.Join(workDir, "page")
	if _, err := p.runner.Run(ctx, p.pdftoppm, "-r", "300", "-png", path, prefix); err != nil {
		return nil, fmt.Errorf("pdf rasterisation failed: %w", err)
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Slice(images, func(i, j int) bool { return pageNumber(images[i]) < pageNumber(images[j]) })

	pages := make([]string, 0, len(images))
	for _, img := range images {
		out, err := p.runner.Run(ctx, p.tesseract, img, "stdout", "-l", p.language)
		if err != nil {
			return nil, fmt.Errorf("ocr failed for %s: %w", filepath.Base(img), err)
		}
		pages = append(pages, string(out))
	}

	docs := pagesToDocuments(pages)
	if len(docs) == 0 {
		return nil, ErrNoText
	}
	for i := range docs {
		docs[i].Metadata[domain.MetaOCR] = "true"
	}
	return docs, nil
}

// ImageParser reads scanned images with tesseract.
type ImageParser struct {
	runner    CommandRunner
	tesseract string
	language  string
}

func NewImageParser(tools Tools) *ImageParser {
	tools = tools.withDefaults()
	return &ImageParser{runner: tools.Runner, tesseract: tools.Tesseract, language: tools.OCRLanguage}
}

func (p *ImageParser) Parse(ctx context.Context, path string) ([]domain.Document, error) {
	out, err := p.runner.Run(ctx, p.tesseract, path, "stdout", "-l", p.language)
	if err != nil {
		return nil, fmt.Errorf("image ocr failed: %w", err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, ErrNoText
	}
	return []domain.Document{{
		Content:  text,
		Metadata: domain.Metadata{domain.MetaOCR: "true"},
	}}, nil
}

func pagesToDocuments(pages []string) []domain.Document {
	var docs []domain.Document
	for i, page := range pages {
		text := strings.TrimSpace(page)
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Content:  text,
			Metadata: domain.Metadata{domain.MetaPage: strconv.Itoa(i + 1)},
		})
	}
	return docs
}

// pageNumber parses the page suffix pdftoppm appends ("page-07.png" -> 7).
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, _ := strconv.Atoi(base[idx+1:])
	return n
}
