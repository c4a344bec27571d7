// Package handlers exposes the trip engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/db"
)

// maxBodyBytes bounds request bodies; finish requests carry a signature image.
const maxBodyBytes = 8 << 20

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	Allowed []string          `json:"allowed,omitempty"`
}

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	var (
		verr  *apperr.ValidationError
		terr  *apperr.InvalidTransition
		aerr  *apperr.AuthorizationError
		sterr *apperr.StorageFailure
	)
	switch {
	case errors.Is(err, apperr.ErrInconsistentRecord):
		return http.StatusInternalServerError
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &aerr):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &terr),
		errors.Is(err, apperr.ErrStaleState),
		errors.Is(err, apperr.ErrDuplicateEvent),
		errors.Is(err, db.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrLocationUnavailable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &sterr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError reports err with its mapped status. Storage and unexpected
// failures hide their cause from the client.
func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := errorResponse{Error: err.Error()}

	var verr *apperr.ValidationError
	if status == http.StatusBadRequest && errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	var terr *apperr.InvalidTransition
	if errors.As(err, &terr) {
		body.Allowed = terr.Allowed
	}
	switch status {
	case http.StatusServiceUnavailable:
		body.Error = "storage unavailable, try again"
	case http.StatusInternalServerError:
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperr.NewValidation("body", "failed to read request body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.NewValidation("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}
