package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"
	"visiondemo/internal/logger"
	"visiondemo/internal/model"
)

// DefaultDelay is the per-image processing time of the simulated engine.
const DefaultDelay = 500 * time.Millisecond

// Fabricated output ranges: [min, min+span).
const (
	minConfidence  = 0.95
	confidenceSpan = 0.05
	minPosition    = 100.0
	positionSpan   = 200.0
	minWidth       = 200.0
	widthSpan      = 100.0
	minHeight      = 150.0
	heightSpan     = 50.0
)

// Job is a batch submitted for recognition.
type Job struct {
	Files []model.UploadedFile
	Label string // category reported for every detection
}

// ProgressFunc is called after each image finishes, in order.
type ProgressFunc func(model.ImageDetection)

// Engine turns a batch into one ImageDetection per file, in upload order.
// A real inference backend replaces the simulated one behind this interface.
type Engine interface {
	Process(ctx context.Context, job Job, onProgress ProgressFunc) ([]model.ImageDetection, error)
}

// Simulated fabricates detections after a fixed delay per image.
type Simulated struct {
	delay  time.Duration
	mu     sync.Mutex
	rng    *rand.Rand
	logger *logger.Logger
}

// NewSimulated creates a simulated engine. A nil source seeds from the clock.
func NewSimulated(delay time.Duration, src rand.Source, logger *logger.Logger) *Simulated {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulated{
		delay:  delay,
		rng:    rand.New(src),
		logger: logger,
	}
}

// Process walks the batch sequentially. Cancelling ctx stops the run between
// images; the records produced so far are returned with ctx.Err().
func (s *Simulated) Process(ctx context.Context, job Job, onProgress ProgressFunc) ([]model.ImageDetection, error) {
	out := make([]model.ImageDetection, 0, len(job.Files))

	for i, file := range job.Files {
		if err := s.wait(ctx); err != nil {
			s.logger.Warning("Simulated run cancelled after %d/%d images", len(out), len(job.Files))
			return out, err
		}

		item := model.ImageDetection{
			ImageIndex: i,
			FileID:     file.ID,
			FileName:   file.Name,
			Status:     model.ItemOK,
			Detections: []model.Detection{s.fabricate(job.Label)},
		}
		out = append(out, item)

		if onProgress != nil {
			onProgress(item)
		}
	}

	return out, nil
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Simulated) fabricate(label string) model.Detection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.Detection{
		Label:      label,
		Confidence: minConfidence + s.rng.Float64()*confidenceSpan,
		BoundingBox: model.BoundingBox{
			X:      minPosition + s.rng.Float64()*positionSpan,
			Y:      minPosition + s.rng.Float64()*positionSpan,
			Width:  minWidth + s.rng.Float64()*widthSpan,
			Height: minHeight + s.rng.Float64()*heightSpan,
		},
	}
}
