package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"visiondemo/internal/config"
	"visiondemo/internal/logger"
	"visiondemo/internal/model"
	"visiondemo/internal/service"
	"visiondemo/internal/service/session"
	"visiondemo/internal/service/upload"
)

// UploadFormField is the multipart field carrying the files.
const UploadFormField = "files"

type uploadResponse struct {
	Accepted []model.UploadedFile `json:"accepted"`
	Rejected int                  `json:"rejected"`
	Session  session.Snapshot     `json:"session"`
}

// UploadHandler adds the image files of a multipart form to the session batch.
// Non-image files are dropped and counted in the response.
func UploadHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)
		if err := r.ParseMultipartForm(cfg.MaxUploadSize); err != nil {
			logger.Warning("Error parsing upload form: %v", err)
			respondError(w, "Invalid upload", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File[UploadFormField]
		files := make([]upload.File, 0, len(headers))
		for _, fh := range headers {
			data, err := readPart(fh)
			if err != nil {
				logger.Error("Error reading uploaded file %s: %v", fh.Filename, err)
				respondError(w, "Unable to read "+fh.Filename, http.StatusBadRequest)
				return
			}
			files = append(files, upload.File{
				Name:        fh.Filename,
				ContentType: upload.DetectContentType(fh.Filename, fh.Header.Get("Content-Type")),
				Data:        data,
			})
		}

		images := upload.FilterImages(files, logger)
		c := currentSession(manager, r)

		accepted := []model.UploadedFile{}
		if len(images) > 0 {
			accepted = c.UploadFiles(images)
		}

		respondJSON(w, uploadResponse{
			Accepted: accepted,
			Rejected: len(files) - len(images),
			Session:  c.Snapshot(),
		}, http.StatusOK)
	}
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
