package handler

import (
	"net/http"
	"visiondemo/internal/logger"
	"visiondemo/internal/middleware"
	"visiondemo/internal/service"
	"visiondemo/internal/service/session"
)

// currentSession resolves the caller's controller from the session cookie.
func currentSession(manager *service.Manager, r *http.Request) *session.Controller {
	return manager.Session(middleware.SessionID(r))
}

// HealthHandler reports liveness.
func HealthHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]interface{}{
			"status":   "ok",
			"sessions": manager.SessionCount(),
			"viewers":  manager.GetWebsocketService().GetClientCount(),
		}, http.StatusOK)
	}
}

// ScenesHandler returns the scene catalog.
func ScenesHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, manager.GetCatalog().Scenes(), http.StatusOK)
	}
}

// GetSessionHandler returns a snapshot of the caller's session.
func GetSessionHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		respondJSON(w, currentSession(manager, r).Snapshot(), http.StatusOK)
	}
}

// SetModeHandler switches between test and production mode.
func SetModeHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		c := currentSession(manager, r)
		if err := c.SetMode(r.FormValue("mode")); err != nil {
			logger.Warning("Session %s: %v", c.LogID(), err)
			respondError(w, err.Error(), statusFor(err))
			return
		}
		respondJSON(w, c.Snapshot(), http.StatusOK)
	}
}

// SetSceneHandler selects the recognition scene.
func SetSceneHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		c := currentSession(manager, r)
		if err := c.SetScene(r.FormValue("scene")); err != nil {
			logger.Warning("Session %s: %v", c.LogID(), err)
			respondError(w, err.Error(), statusFor(err))
			return
		}
		respondJSON(w, c.Snapshot(), http.StatusOK)
	}
}
