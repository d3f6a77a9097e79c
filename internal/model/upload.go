package model

// UploadedFile is one entry of a session's batch. Preview is the handle issued by
// the preview store and is released when the entry leaves the batch.
type UploadedFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Preview     string `json:"preview"`
}
