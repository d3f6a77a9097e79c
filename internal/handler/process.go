package handler

import (
	"net/http"
	"visiondemo/internal/logger"
	"visiondemo/internal/service"
)

// ProcessHandler starts a run over the session batch. The run continues in
// the background; clients follow it through /api/events or /api/session.
func ProcessHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		c := currentSession(manager, r)
		if err := c.StartProcessing(); err != nil {
			logger.Warning("Session %s: start rejected: %v", c.LogID(), err)
			respondError(w, err.Error(), statusFor(err))
			return
		}
		respondJSON(w, c.Snapshot(), http.StatusAccepted)
	}
}

// ClearHandler empties the session, cancelling any run in flight.
func ClearHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		c := currentSession(manager, r)
		c.ClearAll()
		respondJSON(w, c.Snapshot(), http.StatusOK)
	}
}

// DeleteFileHandler removes one file, given by the "id" query parameter.
func DeleteFileHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			respondError(w, "File id required", http.StatusBadRequest)
			return
		}
		c := currentSession(manager, r)
		if err := c.RemoveFile(id); err != nil {
			logger.Warning("Session %s: remove %s: %v", c.LogID(), id, err)
			respondError(w, err.Error(), statusFor(err))
			return
		}
		respondJSON(w, c.Snapshot(), http.StatusOK)
	}
}
