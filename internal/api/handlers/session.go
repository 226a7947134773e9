package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/reportqa/internal/api"
	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/session"
	"github.com/cloo-solutions/reportqa/internal/telemetry"
)

// maxMemory is the part of a multipart upload kept in memory before spilling to disk.
const maxMemory = 32 << 20

// SessionController is the session state machine driven over HTTP.
type SessionController interface {
	Start(ctx context.Context) session.AppState
	LoadExisting(ctx context.Context, state session.AppState) (session.AppState, error)
	SwitchMode(state session.AppState, mode session.Mode) (session.AppState, error)
	Ingest(ctx context.Context, state session.AppState, uploads []domain.Upload) (session.AppState, *service.IngestResult, error)
	Refresh(ctx context.Context, state session.AppState) session.AppState
	SetFilter(state session.AppState, filter domain.Filter) session.AppState
	Ask(ctx context.Context, state session.AppState, question string) (session.AppState, service.Answer)
	ClearChat(state session.AppState) session.AppState
}

type SessionHandler struct {
	ctrl     SessionController
	sessions *session.Registry
}

func NewSessionHandler(ctrl SessionController, sessions *session.Registry) *SessionHandler {
	return &SessionHandler{ctrl: ctrl, sessions: sessions}
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

type FilterRequest struct {
	CompanyName string `json:"company_name"`
	Year        string `json:"year"`
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Answer              string           `json:"answer"`
	Fallback            bool             `json:"fallback"`
	Stage               string           `json:"stage,omitempty"`
	Error               string           `json:"error,omitempty"`
	Sources             []session.Source `json:"sources"`
	RetrievalLatencyMS  int64            `json:"retrieval_latency_ms"`
	GenerationLatencyMS int64            `json:"generation_latency_ms"`
	Session             session.AppState `json:"session"`
}

type IngestResponse struct {
	BatchID string               `json:"batch_id"`
	Chunks  int                  `json:"chunks"`
	Report  *domain.IngestReport `json:"report"`
	Session session.AppState     `json:"session"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	state := h.ctrl.Start(r.Context())
	h.sessions.Put(state)
	api.Success(w, http.StatusCreated, state)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, state)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "id")) {
		api.HandleError(w, domain.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Load(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessions.Update(chi.URLParam(r, "id"), func(s session.AppState) (session.AppState, error) {
		return h.ctrl.LoadExisting(r.Context(), s)
	})
	if err != nil {
		handleStateError(w, r, err, state)
		return
	}
	api.Success(w, http.StatusOK, state)
}

func (h *SessionHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	state, err := h.sessions.Update(chi.URLParam(r, "id"), func(s session.AppState) (session.AppState, error) {
		return h.ctrl.SwitchMode(s, mode)
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, state)
}

// Ingest accepts multipart "files" with shared "company_name" and "year" fields.
// Per-file values go in "company_name[<filename>]" and "year[<filename>]".
func (h *SessionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.sessions.Get(id); err != nil {
		api.HandleError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, err := uploadsFromForm(r.MultipartForm)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var result *service.IngestResult
	state, err := h.sessions.Update(id, func(s session.AppState) (session.AppState, error) {
		next, res, err := h.ctrl.Ingest(r.Context(), s, uploads)
		result = res
		return next, err
	})
	if err != nil {
		if session.StoreChanged(err) {
			h.refreshOthers(r.Context(), id)
		}
		if result != nil && result.Report != nil {
			telemetry.CaptureError(r.Context(), err)
			api.HandleErrorWithDetails(w, err, map[string]interface{}{"report": result.Report, "notice": state.Notice})
			return
		}
		handleStateError(w, r, err, state)
		return
	}

	h.refreshOthers(r.Context(), id)
	api.Success(w, http.StatusOK, IngestResponse{
		BatchID: result.BatchID,
		Chunks:  result.Chunks,
		Report:  result.Report,
		Session: state,
	})
}

func (h *SessionHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filter := domain.NewFilter(req.CompanyName, req.Year)
	state, err := h.sessions.Update(chi.URLParam(r, "id"), func(s session.AppState) (session.AppState, error) {
		return h.ctrl.SetFilter(s, filter), nil
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, state)
}

func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var answer service.Answer
	state, err := h.sessions.Update(chi.URLParam(r, "id"), func(s session.AppState) (session.AppState, error) {
		var next session.AppState
		next, answer = h.ctrl.Ask(r.Context(), s, req.Question)
		return next, nil
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := AskResponse{
		Answer:              answer.Text,
		Fallback:            answer.Fallback,
		Stage:               string(answer.Stage),
		Sources:             session.SourcesFromChunks(answer.Sources),
		RetrievalLatencyMS:  answer.RetrievalLatency.Milliseconds(),
		GenerationLatencyMS: answer.GenerationLatency.Milliseconds(),
		Session:             state,
	}
	if answer.Err != nil {
		resp.Error = answer.Err.Error()
	}
	if resp.Sources == nil {
		resp.Sources = []session.Source{}
	}

	// Fallback answers are still answers; only a missing question is a client error.
	if errors.Is(answer.Err, domain.ErrEmptyQuestion) {
		api.HandleError(w, answer.Err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *SessionHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessions.Update(chi.URLParam(r, "id"), func(s session.AppState) (session.AppState, error) {
		return h.ctrl.ClearChat(s), nil
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, state)
}

// refreshOthers rebinds every other ready session to the replaced collection. After a
// failed replacement that collection is gone and the sessions end up not ready.
func (h *SessionHandler) refreshOthers(ctx context.Context, skip string) {
	h.sessions.UpdateOthers(skip, func(s session.AppState) session.AppState {
		return h.ctrl.Refresh(ctx, s)
	})
}

// handleStateError reports err and includes the session notice when there is one.
func handleStateError(w http.ResponseWriter, r *http.Request, err error, state session.AppState) {
	if api.DomainErrorToHTTP(err) >= http.StatusInternalServerError {
		telemetry.CaptureError(r.Context(), err)
	}
	if state.ID == "" || state.Notice == "" {
		api.HandleError(w, err)
		return
	}
	api.HandleErrorWithDetails(w, err, map[string]string{"notice": state.Notice})
}

func uploadsFromForm(form *multipart.Form) ([]domain.Upload, error) {
	files := form.File["files"]
	if len(files) == 0 {
		return nil, domain.ErrEmptyInput
	}

	uploads := make([]domain.Upload, 0, len(files))
	for _, fh := range files {
		content, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(fh.Filename)
		uploads = append(uploads, domain.Upload{
			Filename:    name,
			Content:     content,
			CompanyName: formValue(form, "company_name", name),
			Year:        formValue(form, "year", name),
		})
	}
	return uploads, nil
}

// formValue prefers key[filename] over the shared key.
func formValue(form *multipart.Form, key, filename string) string {
	if v := form.Value[fmt.Sprintf("%s[%s]", key, filename)]; len(v) > 0 && v[0] != "" {
		return v[0]
	}
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return content, nil
}
