package upload

import (
	"mime"
	"path/filepath"
	"strings"
	"visiondemo/internal/logger"
)

// File is a file received from the upload widget.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// DetectContentType returns the declared type, falling back to the extension's
// MIME type when the client declared none.
func DetectContentType(name, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return declared
}

// IsImage reports whether a MIME type is an image type.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

// FilterImages keeps image files in their original order. Everything else is
// dropped without an error; each rejection is logged as a warning.
func FilterImages(files []File, logger *logger.Logger) []File {
	accepted := make([]File, 0, len(files))
	for _, f := range files {
		if !IsImage(f.ContentType) {
			logger.Warning("Invalid file type %q for %s - dropped", f.ContentType, f.Name)
			continue
		}
		accepted = append(accepted, f)
	}
	return accepted
}
