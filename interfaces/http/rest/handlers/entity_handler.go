package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/services"
	pkgerrors "github.com/noctisdark/mazenrecords-sst/pkg/errors"
)

// EntityHandler serves the single-entity routes of one kind
type EntityHandler[T any] struct {
	service  *services.EntityService[T]
	codec    EntityCodec[T]
	singular string
	plural   string
	// validID checks path ids on reads; nil accepts any non-empty id.
	validID func(id string) bool
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewEntityHandler creates a handler for the kind served by service
func NewEntityHandler[T any](
	service *services.EntityService[T],
	codec EntityCodec[T],
	validID func(id string) bool,
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *EntityHandler[T] {
	singular := strings.ToLower(string(codec.Name()))
	return &EntityHandler[T]{
		service:  service,
		codec:    codec,
		singular: singular,
		plural:   singular + "s",
		validID:  validID,
		errors:   errHandler,
		logger:   logger,
	}
}

// Routes mounts the handler on r
func (h *EntityHandler[T]) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Patch("/", h.Update)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
}

// Get handles GET /{kind}s/{id}
func (h *EntityHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" || (h.validID != nil && !h.validID(id)) {
		h.errors.Handle(w, r, h.invalidID(id))
		return
	}

	e, err := h.service.GetByID(r.Context(), uid, id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{h.singular: h.codec.Present(e)})
}

// List handles GET /{kind}s
func (h *EntityHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	list, err := h.service.List(r.Context(), uid)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	out := make([]any, 0, len(list))
	for _, e := range list {
		out = append(out, h.codec.Present(e))
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{h.plural: out})
}

// Add handles POST /{kind}s
func (h *EntityHandler[T]) Add(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, services.ModeAdd)
}

// Update handles PATCH /{kind}s
func (h *EntityHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, services.ModeUpdate)
}

func (h *EntityHandler[T]) write(w http.ResponseWriter, r *http.Request, mode services.WriteMode) {
	uid, err := userID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var body map[string]json.RawMessage
	if err := decodeBody(w, r, &body); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	raw, ok := body[h.singular]
	if !ok || string(raw) == "null" {
		h.errors.Handle(w, r, invalidBody(fmt.Errorf("missing %s", h.singular)))
		return
	}

	e, err := h.codec.ParseJSON(raw)
	if err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return
	}

	written, err := h.service.AddOrUpdate(r.Context(), uid, mode, e)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{h.singular: h.codec.Echo(written)})
}

// Delete handles DELETE /{kind}s/{id}
func (h *EntityHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.errors.Handle(w, r, h.invalidID(id))
		return
	}

	ts, err := h.service.DeleteByID(r.Context(), uid, id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]int64{"timestamp": ts})
}

func (h *EntityHandler[T]) invalidID(id string) error {
	return pkgerrors.NewValidationError(fmt.Sprintf("Invalid %s id: %s.", h.singular, id))
}
