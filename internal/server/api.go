package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/sjawhar/roomline/internal/call"
	"github.com/sjawhar/roomline/internal/order"
	"github.com/sjawhar/roomline/internal/storage"
	"github.com/sjawhar/roomline/internal/transcript"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const maxBodyBytes = 1 << 20

func validID(id string) bool {
	return idPattern.MatchString(id)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var validation *order.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, call.ErrCallEnded),
		errors.Is(err, call.ErrNotActive):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, transcript.ErrSessionRequired),
		errors.Is(err, transcript.ErrEmptyText):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	var validation *order.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       err.Error(),
			"corrections": validation.Corrections,
		})
		return
	}
	writeJSONError(w, statusFor(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
