package handler

import (
	"net/http"
	"strconv"
	"visiondemo/internal/config"
	"visiondemo/internal/logger"
	"visiondemo/internal/model"
	"visiondemo/internal/service"
)

type runDetail struct {
	Run        *model.RunRecord     `json:"run"`
	Detections []model.RunDetection `json:"detections"`
}

// RunsHandler lists recently completed runs. With "id" it returns that run
// with its detections.
func RunsHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		q := r.URL.Query()

		if runID := q.Get("id"); runID != "" {
			run, detections, err := manager.RunDetail(runID)
			if err != nil {
				logger.Error("Error loading run %s: %v", runID, err)
				respondError(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if run == nil {
				respondError(w, "Run not found", http.StatusNotFound)
				return
			}
			respondJSON(w, runDetail{Run: run, Detections: detections}, http.StatusOK)
			return
		}

		limit := atoiDefault(q.Get("limit"), cfg.HistoryLimit)
		if limit > cfg.HistoryLimit {
			limit = cfg.HistoryLimit
		}

		runs, err := manager.RecentRuns(limit)
		if err != nil {
			logger.Error("Error querying run history: %v", err)
			respondError(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, runs, http.StatusOK)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
