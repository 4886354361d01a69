package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"splittab/internal/core"
	applog "splittab/internal/log"
	"splittab/internal/services"
	"splittab/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain and storage errors onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrNothingOwed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger := applog.FromContext(r.Context())
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyDescription) ||
		errors.Is(err, core.ErrDescriptionTooLong) ||
		errors.Is(err, core.ErrNegativeAmount) ||
		errors.Is(err, core.ErrInvalidStatus) ||
		errors.Is(err, core.ErrEmptyName) ||
		errors.Is(err, core.ErrInvalidAmount)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
