package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	"github.com/noctisdark/mazenrecords-sst/pkg/auth"
	pkgerrors "github.com/noctisdark/mazenrecords-sst/pkg/errors"
)

// EntityCodec is a ports.Codec that can also read client-submitted JSON
type EntityCodec[T any] interface {
	ports.Codec[T]
	ParseJSON(raw []byte) (entities.Entity[T], error)
	ParseJSONList(raw []json.RawMessage) ([]entities.Entity[T], error)
}

// maxBodyBytes caps request bodies. API Gateway payloads stop at 10 MB.
const maxBodyBytes = 10 << 20

func userID(r *http.Request) (string, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil || user.UserID == "" {
		return "", pkgerrors.NewUnauthorizedError("")
	}
	return user.UserID, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return invalidBody(err)
	}
	return nil
}

func invalidBody(cause error) error {
	msg := "Invalid body"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return pkgerrors.NewValidationError(msg).WithCause(cause)
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
