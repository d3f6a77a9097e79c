package handler

import (
	"net/http"
	"strconv"
	"visiondemo/internal/logger"
	"visiondemo/internal/service"
	"visiondemo/internal/service/preview"
	"visiondemo/internal/service/session"
)

// ViewPreviewHandler serves the preview of an uploaded file. Only files of the
// caller's own batch are reachable.
func ViewPreviewHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			respondError(w, "File id required", http.StatusBadRequest)
			return
		}

		var handle preview.Handle
		for _, f := range currentSession(manager, r).Snapshot().Files {
			if f.ID == id {
				handle = preview.Handle(f.Preview)
				break
			}
		}
		if handle == "" {
			respondError(w, session.ErrFileNotFound.Error(), http.StatusNotFound)
			return
		}

		p, err := manager.GetPreviewStore().Open(handle)
		if err != nil {
			logger.Warning("Error opening preview %s: %v", handle, err)
			respondError(w, err.Error(), statusFor(err))
			return
		}

		w.Header().Set("Content-Type", p.ContentType)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.Write(p.Data)
	}
}

// AnnotatedPreviewHandler renders a processed image with its bounding boxes.
func AnnotatedPreviewHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil || index < 0 {
			respondError(w, "Valid index required", http.StatusBadRequest)
			return
		}

		jpeg, err := manager.Annotated(currentSession(manager, r), index)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				logger.Error("Error annotating image %d: %v", index, err)
				respondError(w, "Unable to render image", status)
				return
			}
			respondError(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(jpeg)
	}
}
