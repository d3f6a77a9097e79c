package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"visiondemo/internal/service"
	"visiondemo/internal/service/preview"
	"visiondemo/internal/service/session"
)

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

// allowMethod writes 405 and returns false unless the request uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrEmptyBatch),
		errors.Is(err, session.ErrInvalidMode),
		errors.Is(err, session.ErrInvalidScene):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrProcessingAlreadyRunning),
		errors.Is(err, session.ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, session.ErrFileNotFound),
		errors.Is(err, service.ErrNotProcessed),
		errors.Is(err, preview.ErrHandleNotFound):
		return http.StatusNotFound
	case errors.Is(err, preview.ErrHandleReleased):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
