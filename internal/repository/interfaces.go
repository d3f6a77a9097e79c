package repository

import "visiondemo/internal/model"

// RunRepository stores summaries of completed processing runs.
type RunRepository interface {
	// Create operations
	Insert(run *model.RunRecord, detections []model.RunDetection) (int64, error)

	// Read operations
	GetByRunID(runID string) (*model.RunRecord, error)
	GetRecent(limit int) ([]model.RunRecord, error)
	GetDetections(id int64) ([]model.RunDetection, error)
	Count() (int, error)

	// Delete operations
	DeleteAll() error
}
