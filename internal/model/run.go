package model

import "time"

// RunRecord is the stored summary of a completed processing run.
type RunRecord struct {
	ID               int64     `json:"id"`
	RunID            string    `json:"runId"`
	SessionID        string    `json:"-"` // the owner's cookie value, never served
	Scene            Scene     `json:"scene"`
	Mode             Mode      `json:"mode"`
	TotalImages      int       `json:"totalImages"`
	VehiclesDetected int       `json:"vehiclesDetected"`
	Confidence       float64   `json:"confidence"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
}

// RunDetection is one stored detection belonging to a run.
type RunDetection struct {
	ID         int64   `json:"id"`
	RunID      int64   `json:"run_id"`
	ImageIndex int     `json:"image_index"`
	FileName   string  `json:"file_name"`
	Label      string  `json:"label"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}
