package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/service"
)

// MaxRetries is how many consecutive failed passes are retried before waiting for the
// next folder change.
const MaxRetries = 3

// DirtySource tells the processor when the folder changed.
type DirtySource interface {
	TakeDirty() bool
	MarkDirty()
}

// Ingester replaces the collection with uploads.
type Ingester interface {
	Ingest(ctx context.Context, uploads []domain.Upload) (*service.IngestResult, error)
}

// ReingestProcessor re-ingests every supported file in a folder after it changes.
type ReingestProcessor struct {
	dir         string
	source      DirtySource
	ingester    Ingester
	companyName string
	year        string
	onIngested  func(*service.IngestResult)
	failures    int
}

// NewReingestProcessor stamps every file with companyName and year. onIngested may be
// nil.
func NewReingestProcessor(dir string, source DirtySource, ingester Ingester, companyName, year string, onIngested func(*service.IngestResult)) *ReingestProcessor {
	return &ReingestProcessor{
		dir:         dir,
		source:      source,
		ingester:    ingester,
		companyName: companyName,
		year:        year,
		onIngested:  onIngested,
	}
}

// ProcessJobs implements the JobProcessor interface
func (p *ReingestProcessor) ProcessJobs(ctx context.Context) error {
	if !p.source.TakeDirty() {
		return nil
	}

	paths, err := SupportedFiles(p.dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Printf("watch: no supported files in %s, keeping current collection", p.dir)
		return nil
	}

	uploads, err := service.ReadUploads(paths, p.companyName, p.year)
	if err != nil {
		return p.retry(err)
	}

	result, err := p.ingester.Ingest(ctx, uploads)
	if err != nil {
		// Input problems only clear up when the folder changes again.
		if errors.Is(err, domain.ErrExtractionFailed) || errors.Is(err, domain.ErrChunkingFailed) {
			p.failures = 0
			return fmt.Errorf("failed to re-ingest %s: %w", p.dir, err)
		}
		return p.retry(err)
	}

	p.failures = 0
	log.Printf("watch: re-ingested %d files from %s into %d chunks", result.Report.Loaded(), p.dir, result.Chunks)
	if p.onIngested != nil {
		p.onIngested(result)
	}
	return nil
}

func (p *ReingestProcessor) retry(err error) error {
	p.failures++
	if p.failures < MaxRetries {
		p.source.MarkDirty()
		return fmt.Errorf("failed to re-ingest %s (attempt %d/%d): %w", p.dir, p.failures, MaxRetries, err)
	}
	p.failures = 0
	return fmt.Errorf("giving up re-ingesting %s after %d attempts: %w", p.dir, MaxRetries, err)
}

// SupportedFiles lists the supported documents directly inside dir, sorted by name.
func SupportedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := domain.FormatFromFilename(e.Name()); ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
