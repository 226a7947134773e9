package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/google/uuid"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
)

// Notices shown to the user.
const (
	NoticeNoUploads       = "Please upload at least one document and provide its metadata to process."
	NoticeNothingExtract  = "No text could be extracted. Please check files."
	NoticeChunkingFailed  = "Failed to chunk documents."
	NoticeStoreFailed     = "Failed to create/persist the vector store. Check logs and Azure credentials."
	NoticeProcessed       = "Documents processed and saved to the vector store!"
	NoticeLoaded          = "Vector store loaded. Ready for chat."
	NoticeNoData          = "No vector store data found. Switch to 'Upload New Documents'."
	NoticeLoadFailed      = "Could not load existing vector store data."
	NoticeEmptyCollection = "Vector store loaded but collection is empty."
	NoticeUploadToBegin   = "Please upload documents and provide metadata to begin chatting."
)

// Store is the collection lifecycle the controller drives.
type Store interface {
	Load(ctx context.Context, ref domain.CollectionRef) (*vectorstore.Index, error)
	HasData(ctx context.Context, path string) bool
	DeleteCollection(ctx context.Context, ref domain.CollectionRef) error
	DeleteAll(ctx context.Context, path string) error
}

// Ingester replaces the collection with uploaded documents.
type Ingester interface {
	Ingest(ctx context.Context, uploads []domain.Upload) (*service.IngestResult, error)
	Purge(ctx context.Context) error
}

// Controller implements the session state machine over one collection.
type Controller struct {
	store     Store
	ingester  Ingester
	generator service.AnswerGenerator
	ref       domain.CollectionRef
	topK      int
}

// NewController creates a Controller retrieving topK chunks per question.
func NewController(store Store, ingester Ingester, generator service.AnswerGenerator, ref domain.CollectionRef, topK int) *Controller {
	if topK <= 0 {
		topK = 5
	}
	return &Controller{
		store:     store,
		ingester:  ingester,
		generator: generator,
		ref:       ref,
		topK:      topK,
	}
}

func (c *Controller) Ref() domain.CollectionRef { return c.ref }

// Start creates a session and makes the initial attempt to load stored data.
func (c *Controller) Start(ctx context.Context) AppState {
	state := NewState(uuid.NewString())
	if !c.store.HasData(ctx, c.ref.Path) {
		state.Notice = NoticeNoData
		return state
	}
	state, err := c.LoadExisting(ctx, state)
	if err != nil {
		log.Printf("session %s: initial load failed: %v", state.ID, err)
	}
	return state
}

// LoadExisting opens the stored collection. An empty collection leaves the session
// not ready and returns domain.ErrIndexEmpty.
func (c *Controller) LoadExisting(ctx context.Context, state AppState) (AppState, error) {
	state = state.unconfigured()
	state.Mode = ModeLoadExisting
	state.Report = nil

	idx, err := c.store.Load(ctx, c.ref)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			state.Notice = NoticeNoData
		} else {
			state.Notice = NoticeLoadFailed
		}
		return state, err
	}

	n, err := idx.Count(ctx)
	if err != nil {
		state.Notice = NoticeLoadFailed
		return state, err
	}
	if n == 0 {
		log.Printf("session %s: %s loaded but collection is empty", state.ID, c.ref)
		state.Notice = NoticeEmptyCollection
		return state, domain.ErrIndexEmpty
	}

	state = c.activate(ctx, state, idx)
	state.Notice = NoticeLoaded
	return state, nil
}

// FilterOptions lists the filter values of the stored collection.
func (c *Controller) FilterOptions(ctx context.Context) (service.FilterOptions, error) {
	idx, err := c.store.Load(ctx, c.ref)
	if err != nil {
		return service.FilterOptions{}, err
	}
	return service.AvailableFilters(ctx, idx)
}

// SwitchMode changes the data source mode without touching the index.
func (c *Controller) SwitchMode(state AppState, mode Mode) (AppState, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return state, err
	}
	state.Mode = mode
	state.Notice = ""
	if mode == ModeUploadNew && !state.Ready {
		state.Notice = NoticeUploadToBegin
	}
	return state, nil
}

// Ingest replaces the collection with uploads. Extraction and chunking failures keep
// the previous collection and state; store and provider failures leave the session
// not ready.
func (c *Controller) Ingest(ctx context.Context, state AppState, uploads []domain.Upload) (AppState, *service.IngestResult, error) {
	if len(uploads) == 0 {
		state.Notice = NoticeNoUploads
		return state, nil, domain.ErrEmptyInput
	}

	result, err := c.ingester.Ingest(ctx, uploads)
	if result != nil {
		state.Report = result.Report
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyInput):
			state.Notice = NoticeNoUploads
		case errors.Is(err, domain.ErrExtractionFailed):
			state.Notice = NoticeNothingExtract
		case errors.Is(err, domain.ErrChunkingFailed):
			state.Notice = NoticeChunkingFailed
		default:
			log.Printf("session %s: ingest failed: %v", state.ID, err)
			report := state.Report
			state = state.unconfigured()
			state.Report = report
			state.Notice = NoticeStoreFailed
		}
		return state, result, err
	}

	state = c.activate(ctx, state, result.Index)
	state.Mode = ModeUploadNew
	state.Notice = NoticeProcessed
	return state, result, nil
}

// StoreChanged reports whether an Ingest that returned err may have replaced the
// stored collection. Replacement drops the old collection before embedding the new
// batch, so provider and store failures count as well as success; only failures
// before that point leave the collection untouched.
func StoreChanged(err error) bool {
	return !errors.Is(err, domain.ErrEmptyInput) &&
		!errors.Is(err, domain.ErrExtractionFailed) &&
		!errors.Is(err, domain.ErrChunkingFailed)
}

// Refresh reattaches a session to the current collection after another session
// replaced or deleted it. Sessions that were not ready are left alone.
func (c *Controller) Refresh(ctx context.Context, state AppState) AppState {
	if !state.Ready {
		return state
	}
	mode := state.Mode
	state, err := c.LoadExisting(ctx, state)
	if err != nil {
		log.Printf("session %s: refresh failed: %v", state.ID, err)
	}
	state.Mode = mode
	return state
}

// SetFilter changes the metadata filter, rebuilding the retriever and clearing the
// transcript. An unchanged filter is a no-op.
func (c *Controller) SetFilter(state AppState, filter domain.Filter) AppState {
	if state.Filter.Equal(filter) {
		return state
	}
	log.Printf("session %s: filters changed to %s", state.ID, filter)
	state.Filter = filter
	state.Messages = nil
	if state.Index != nil {
		state.QA = service.BuildQA(state.Index.Retriever(filter, c.topK), c.generator)
	}
	return state
}

// Ask answers question and appends the exchange to the transcript. A session that is
// not ready gets the fallback answer and an unchanged transcript.
func (c *Controller) Ask(ctx context.Context, state AppState, question string) (AppState, service.Answer) {
	if !state.Ready || state.QA == nil {
		return state, service.Answer{
			Text:     service.FallbackAnswer,
			Fallback: true,
			Stage:    service.StageValidation,
			Err:      domain.ErrNotReady,
		}
	}

	answer := state.QA.Ask(ctx, question)
	if answer.Stage == service.StageValidation {
		return state, answer
	}

	reply := Message{Role: RoleAssistant, Content: answer.Text}
	if !answer.Fallback {
		reply.Sources = SourcesFromChunks(answer.Sources)
	}
	state = state.withMessages(Message{Role: RoleUser, Content: question}, reply)
	return state, answer
}

// ClearChat empties the transcript.
func (c *Controller) ClearChat(state AppState) AppState {
	state.Messages = nil
	return state
}

// DeleteCollection removes the session's collection and archived originals, then
// resets the session to upload mode.
func (c *Controller) DeleteCollection(ctx context.Context, state AppState) (AppState, error) {
	if err := c.store.DeleteCollection(ctx, c.ref); err != nil {
		state.Notice = fmt.Sprintf("Failed to delete collection '%s'.", c.ref.Name)
		return state, err
	}
	if err := c.ingester.Purge(ctx); err != nil {
		log.Printf("session %s: %v", state.ID, err)
	}

	state = c.reset(state)
	state.Notice = fmt.Sprintf("Collection '%s' deleted.", c.ref.Name)
	return state, nil
}

// DeleteAll removes the entire store directory, every collection included.
func (c *Controller) DeleteAll(ctx context.Context, state AppState) (AppState, error) {
	if err := c.store.DeleteAll(ctx, c.ref.Path); err != nil {
		state.Notice = fmt.Sprintf("Failed to delete vector store at '%s'.", c.ref.Path)
		return state, err
	}
	if err := c.ingester.Purge(ctx); err != nil {
		log.Printf("session %s: %v", state.ID, err)
	}

	state = c.reset(state)
	state.Notice = fmt.Sprintf("Vector store at '%s' deleted.", c.ref.Path)
	return state, nil
}

func (c *Controller) reset(state AppState) AppState {
	state = state.unconfigured()
	state.Filter = domain.Filter{}
	state.Report = nil
	state.Mode = ModeUploadNew
	return state
}

// activate binds idx to the session: filter options, retriever and a fresh transcript.
// A selected filter value no longer offered by the collection is dropped.
func (c *Controller) activate(ctx context.Context, state AppState, idx *vectorstore.Index) AppState {
	opts, err := service.AvailableFilters(ctx, idx)
	if err != nil {
		log.Printf("session %s: error fetching metadata for filters: %v", state.ID, err)
	}

	state.Index = idx
	state.Companies = opts.Companies
	state.Years = opts.Years
	state.Filter = reconcileFilter(state.Filter, opts)
	state.Messages = nil
	state.QA = service.BuildQA(idx.Retriever(state.Filter, c.topK), c.generator)
	state.Ready = true
	log.Printf("session %s: retriever ready on %s (k=%d, %s)", state.ID, idx.Ref(), c.topK, state.Filter)
	return state
}

func reconcileFilter(f domain.Filter, opts service.FilterOptions) domain.Filter {
	if f.CompanyName != nil && !slices.Contains(opts.Companies, *f.CompanyName) {
		f.CompanyName = nil
	}
	if f.Year != nil && !slices.Contains(opts.Years, *f.Year) {
		f.Year = nil
	}
	return f
}
