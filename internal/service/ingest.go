package service

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/telemetry"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
)

// DocumentLoader extracts documents from uploaded files.
type DocumentLoader interface {
	Load(ctx context.Context, uploads []domain.Upload) ([]domain.Document, *domain.IngestReport)
}

// Chunker splits documents into chunks.
type Chunker interface {
	Split(ctx context.Context, docs []domain.Document) ([]domain.Chunk, error)
}

// IndexWriter replaces a collection's contents.
type IndexWriter interface {
	Replace(ctx context.Context, chunks []domain.Chunk, ref domain.CollectionRef) (*vectorstore.Index, error)
}

// Archiver keeps copies of uploaded originals.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// IngestResult describes a successful ingest.
type IngestResult struct {
	BatchID string               `json:"batch_id"`
	Chunks  int                  `json:"chunks"`
	Report  *domain.IngestReport `json:"report"`
	Index   *vectorstore.Index   `json:"-"`
}

// IngestService runs load, chunk and index replacement for one collection.
type IngestService struct {
	loader   DocumentLoader
	chunker  Chunker
	writer   IndexWriter
	archiver Archiver
	ref      domain.CollectionRef
	uuidGen  UUIDGenerator
}

// NewIngestService creates an IngestService. archiver may be nil.
func NewIngestService(loader DocumentLoader, chunker Chunker, writer IndexWriter, archiver Archiver, ref domain.CollectionRef) *IngestService {
	return &IngestService{
		loader:   loader,
		chunker:  chunker,
		writer:   writer,
		archiver: archiver,
		ref:      ref,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

func (s *IngestService) Ref() domain.CollectionRef { return s.ref }

// Ingest replaces the collection with the content of uploads. The load report is
// returned alongside any error so callers can show per-file outcomes.
func (s *IngestService) Ingest(ctx context.Context, uploads []domain.Upload) (*IngestResult, error) {
	ctx, span := telemetry.StartIngest(ctx, telemetry.SpanAttributes{Collection: s.ref.String()})
	defer span.End()

	if len(uploads) == 0 {
		return nil, domain.ErrEmptyInput
	}

	result := &IngestResult{BatchID: s.uuidGen.NewString()}

	docs, report := s.loader.Load(ctx, uploads)
	result.Report = report
	log.Printf("ingest: batch %s loaded %d documents from %d/%d files", result.BatchID, len(docs), report.Loaded(), len(uploads))
	if len(docs) == 0 {
		return result, domain.ErrExtractionFailed
	}

	chunks, err := s.chunker.Split(ctx, docs)
	if err != nil {
		span.SetError(err)
		return result, domain.Wrap(domain.ErrChunkingFailed, err)
	}
	result.Chunks = len(chunks)
	span.SetData("documents", len(docs))
	span.SetData("chunks", len(chunks))
	telemetry.Breadcrumb(ctx, "ingest", "split %d documents into %d chunks", len(docs), len(chunks))

	idx, err := s.writer.Replace(ctx, chunks, s.ref)
	if err != nil {
		span.SetError(err)
		return result, err
	}
	result.Index = idx

	s.archive(ctx, result.BatchID, uploads, report)
	return result, nil
}

func (s *IngestService) archive(ctx context.Context, batchID string, uploads []domain.Upload, report *domain.IngestReport) {
	if s.archiver == nil {
		return
	}

	loaded := make(map[string]bool, len(report.Files))
	for _, f := range report.Files {
		if f.Status == domain.FileStatusLoaded {
			loaded[f.Filename] = true
		}
	}

	for _, u := range uploads {
		name := filepath.Base(u.Filename)
		if !loaded[name] {
			continue
		}
		key := path.Join(s.ref.Name, batchID, name)
		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.archiver.Put(ctx, key, u.Content, contentType); err != nil {
			log.Printf("ingest: failed to archive %s: %v", key, err)
		}
	}
}

// Purge removes archived originals for the collection.
func (s *IngestService) Purge(ctx context.Context) error {
	if s.archiver == nil {
		return nil
	}
	n, err := s.archiver.DeletePrefix(ctx, s.ref.Name+"/")
	if err != nil {
		return fmt.Errorf("failed to purge archive: %w", err)
	}
	log.Printf("ingest: purged %d archived files for %s", n, s.ref.Name)
	return nil
}

// ReadUploads reads files from disk as uploads sharing company and year.
func ReadUploads(paths []string, companyName, year string) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		uploads = append(uploads, domain.Upload{
			Filename:    filepath.Base(p),
			Content:     content,
			CompanyName: companyName,
			Year:        year,
		})
	}
	return uploads, nil
}
