package sqlite

import (
	"database/sql"
	"fmt"

	"visiondemo/internal/model"
)

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert stores a run and its detections in a single transaction.
func (r *RunRepository) Insert(run *model.RunRecord, detections []model.RunDetection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO runs (run_id, session_id, scene, mode, total_images, vehicles_detected, confidence, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.SessionID, string(run.Scene), string(run.Mode), run.TotalImages, run.VehiclesDetected,
		run.Confidence, run.StartedAt, run.FinishedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_detections (run_id, image_index, file_name, label, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(id, det.ImageIndex, det.FileName, det.Label, det.X, det.Y, det.Width, det.Height, det.Confidence); err != nil {
			return 0, fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// GetByRunID retrieves a run by its public run id. A missing run yields nil, nil.
func (r *RunRepository) GetByRunID(runID string) (*model.RunRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var run model.RunRecord
	err := r.db.Conn().QueryRow(`
		SELECT id, run_id, session_id, scene, mode, total_images, vehicles_detected, confidence, started_at, finished_at
		FROM runs WHERE run_id = ?
	`, runID).Scan(&run.ID, &run.RunID, &run.SessionID, &run.Scene, &run.Mode, &run.TotalImages,
		&run.VehiclesDetected, &run.Confidence, &run.StartedAt, &run.FinishedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetRecent returns the most recently finished runs, newest first.
func (r *RunRepository) GetRecent(limit int) ([]model.RunRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, run_id, session_id, scene, mode, total_images, vehicles_detected, confidence, started_at, finished_at
		FROM runs ORDER BY finished_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.RunRecord{}
	for rows.Next() {
		var run model.RunRecord
		if err := rows.Scan(&run.ID, &run.RunID, &run.SessionID, &run.Scene, &run.Mode, &run.TotalImages,
			&run.VehiclesDetected, &run.Confidence, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetDetections returns the detections of a run in image order.
func (r *RunRepository) GetDetections(id int64) ([]model.RunDetection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, run_id, image_index, file_name, label, x, y, width, height, confidence
		FROM run_detections WHERE run_id = ? ORDER BY image_index, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.RunDetection
	for rows.Next() {
		var det model.RunDetection
		if err := rows.Scan(&det.ID, &det.RunID, &det.ImageIndex, &det.FileName, &det.Label,
			&det.X, &det.Y, &det.Width, &det.Height, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// Count returns the number of stored runs.
func (r *RunRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// DeleteAll removes every run and, by cascade, its detections.
func (r *RunRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}
	return nil
}
