package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/services"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/codec"
	pkgerrors "github.com/noctisdark/mazenrecords-sst/pkg/errors"
)

// SyncHandler serves the whole-dataset routes
type SyncHandler struct {
	service *services.SyncService
	visits  EntityCodec[entities.Visit]
	brands  EntityCodec[entities.Brand]
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(
	service *services.SyncService,
	visits EntityCodec[entities.Visit],
	brands EntityCodec[entities.Brand],
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *SyncHandler {
	return &SyncHandler{
		service: service,
		visits:  visits,
		brands:  brands,
		errors:  errHandler,
		logger:  logger,
	}
}

// datasetRequest members are pointers so a missing member is told apart
// from an empty list.
type datasetRequest struct {
	Visits *[]json.RawMessage `json:"visits"`
	Brands *[]json.RawMessage `json:"brands"`
}

type syncRequest struct {
	VisitDeletes []codec.FlexibleID `json:"visitDeletes"`
	BrandDeletes []codec.FlexibleID `json:"brandDeletes"`
	VisitUpserts []json.RawMessage  `json:"visitUpserts"`
	BrandUpserts []json.RawMessage  `json:"brandUpserts"`
}

var errMissingDataset = errors.New("visits and brands are required")

// UpdatesSince handles GET /updatesSince?epoch=N
func (h *SyncHandler) UpdatesSince(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	raw := r.URL.Query().Get("epoch")
	if raw == "" {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("search parameters epoch expected"))
		return
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("search parameters epoch must be an integer"))
		return
	}

	changes, err := h.service.UpdatesSince(r.Context(), uid, epoch)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, changes)
}

// Upload handles PATCH /upload
func (h *SyncHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uid, visits, brands, ok := h.readDataset(w, r)
	if !ok {
		return
	}

	res, err := h.service.Upload(r.Context(), uid, visits, brands)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, res)
}

// Replace handles PUT /replace
func (h *SyncHandler) Replace(w http.ResponseWriter, r *http.Request) {
	uid, visits, brands, ok := h.readDataset(w, r)
	if !ok {
		return
	}

	ts, err := h.service.ReplaceAll(r.Context(), uid, visits, brands)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]int64{"timestamp": ts})
}

// Sync handles PATCH /sync
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var body syncRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	req := services.SyncRequest{
		VisitDeletes: idStrings(body.VisitDeletes),
		BrandDeletes: idStrings(body.BrandDeletes),
	}
	if req.VisitUpserts, err = h.visits.ParseJSONList(body.VisitUpserts); err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return
	}
	if req.BrandUpserts, err = h.brands.ParseJSONList(body.BrandUpserts); err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return
	}

	res, err := h.service.Sync(r.Context(), uid, req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, res)
}

// readDataset parses a {visits, brands} body. Parsing finishes before any
// write so a malformed body never reaches the destructive steps.
func (h *SyncHandler) readDataset(w http.ResponseWriter, r *http.Request) (string, []entities.Entity[entities.Visit], []entities.Entity[entities.Brand], bool) {
	uid, err := userID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return "", nil, nil, false
	}

	var body datasetRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.errors.Handle(w, r, err)
		return "", nil, nil, false
	}

	if body.Visits == nil || body.Brands == nil {
		h.errors.Handle(w, r, invalidBody(errMissingDataset))
		return "", nil, nil, false
	}

	visits, err := h.visits.ParseJSONList(*body.Visits)
	if err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return "", nil, nil, false
	}
	brands, err := h.brands.ParseJSONList(*body.Brands)
	if err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return "", nil, nil, false
	}
	return uid, visits, brands, true
}

func idStrings(ids []codec.FlexibleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
