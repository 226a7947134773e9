// Package loader turns uploaded files into raw documents stamped with their source
// filename and the uploader's company and year.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// Loader dispatches uploads to the registered parser for their format.
type Loader struct {
	registry *Registry
	tempRoot string
}

// New creates a Loader. Temp files go under the OS temp dir.
func New(registry *Registry) *Loader {
	return &Loader{registry: registry}
}

// NewWithTempRoot creates a Loader that stages uploads under root.
func NewWithTempRoot(registry *Registry, root string) *Loader {
	return &Loader{registry: registry, tempRoot: root}
}

// Load parses every upload. Files that are unsupported or fail extraction are recorded
// in the report and skipped; they never abort the batch.
func (l *Loader) Load(ctx context.Context, uploads []domain.Upload) ([]domain.Document, *domain.IngestReport) {
	report := &domain.IngestReport{}
	if len(uploads) == 0 {
		return nil, report
	}

	tempDir, err := os.MkdirTemp(l.tempRoot, "reportqa-upload-*")
	if err != nil {
		log.Printf("loader: failed to create temp dir: %v", err)
		for _, u := range uploads {
			report.Add(domain.FileOutcome{Filename: u.Filename, Status: domain.FileStatusFailed, Reason: err.Error()})
		}
		return nil, report
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Printf("loader: could not remove temp dir %s: %v", tempDir, err)
		}
	}()

	var docs []domain.Document
	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			report.Add(domain.FileOutcome{Filename: upload.Filename, Status: domain.FileStatusFailed, Reason: err.Error()})
			continue
		}

		loaded, outcome := l.loadOne(ctx, tempDir, upload)
		report.Add(outcome)
		docs = append(docs, loaded...)
	}

	log.Printf("loader: %d of %d files loaded, %d documents", report.Loaded(), len(uploads), len(docs))
	return docs, report
}

func (l *Loader) loadOne(ctx context.Context, tempDir string, upload domain.Upload) ([]domain.Document, domain.FileOutcome) {
	name := filepath.Base(upload.Filename)
	outcome := domain.FileOutcome{Filename: name}

	format, ok := domain.FormatFromFilename(name)
	if !ok {
		log.Printf("loader: unsupported file type: %s", name)
		outcome.Status = domain.FileStatusUnsupported
		outcome.Reason = domain.ErrUnsupportedFormat.Message
		return nil, outcome
	}

	parser, ok := l.registry.Parser(format)
	if !ok {
		outcome.Status = domain.FileStatusUnsupported
		outcome.Reason = fmt.Sprintf("no parser registered for %s", format)
		return nil, outcome
	}

	path := filepath.Join(tempDir, name)
	if err := os.WriteFile(path, upload.Content, 0o600); err != nil {
		log.Printf("loader: failed to stage %s: %v", name, err)
		outcome.Status = domain.FileStatusFailed
		outcome.Reason = err.Error()
		return nil, outcome
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("loader: could not remove temp file %s: %v", path, err)
		}
	}()

	raw, err := parser.Parse(ctx, path)
	if err != nil {
		log.Printf("loader: extraction failed for %s: %v", name, err)
		outcome.Status = domain.FileStatusFailed
		outcome.Reason = err.Error()
		return nil, outcome
	}

	docs := make([]domain.Document, 0, len(raw))
	for _, d := range raw {
		doc := domain.NewDocument(d.Content, name, upload.CompanyName, upload.Year)
		for k, v := range d.Metadata {
			doc.Metadata[k] = v
		}
		doc.Metadata[domain.MetaFormat] = string(format)
		docs = append(docs, doc)
	}

	outcome.Status = domain.FileStatusLoaded
	outcome.Documents = len(docs)
	return docs, outcome
}
