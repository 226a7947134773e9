package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/reportqa/internal/api"
	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/session"
	"github.com/cloo-solutions/reportqa/internal/telemetry"
)

// CollectionController manages the shared collection.
type CollectionController interface {
	Ref() domain.CollectionRef
	FilterOptions(ctx context.Context) (service.FilterOptions, error)
	DeleteCollection(ctx context.Context, state session.AppState) (session.AppState, error)
	DeleteAll(ctx context.Context, state session.AppState) (session.AppState, error)
}

type CollectionHandler struct {
	ctrl     CollectionController
	sessions *session.Registry
}

func NewCollectionHandler(ctrl CollectionController, sessions *session.Registry) *CollectionHandler {
	return &CollectionHandler{ctrl: ctrl, sessions: sessions}
}

type CollectionResponse struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Notice string `json:"notice"`
}

func (h *CollectionHandler) Filters(w http.ResponseWriter, r *http.Request) {
	opts, err := h.ctrl.FilterOptions(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if opts.Companies == nil {
		opts.Companies = []string{}
	}
	if opts.Years == nil {
		opts.Years = []string{}
	}
	api.Success(w, http.StatusOK, opts)
}

func (h *CollectionHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.ctrl.DeleteCollection)
}

func (h *CollectionHandler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.ctrl.DeleteAll)
}

// delete runs del and resets every live session to upload mode.
func (h *CollectionHandler) delete(w http.ResponseWriter, r *http.Request, del func(context.Context, session.AppState) (session.AppState, error)) {
	state, err := del(r.Context(), session.NewState(""))
	if err != nil {
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	h.sessions.UpdateOthers("", func(s session.AppState) session.AppState {
		reset := state
		reset.ID = s.ID
		return reset
	})

	ref := h.ctrl.Ref()
	api.Success(w, http.StatusOK, CollectionResponse{Path: ref.Path, Name: ref.Name, Notice: state.Notice})
}
