package model

import "time"

// BoundingBox locates a detection in pixel-like units.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one recognized object.
type Detection struct {
	Label       string      `json:"type"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// ItemStatus is the outcome of processing a single image.
type ItemStatus string

const (
	ItemOK     ItemStatus = "ok"
	ItemFailed ItemStatus = "failed"
)

// ImageDetection holds the detections for one image of the batch.
type ImageDetection struct {
	ImageIndex int         `json:"imageIndex"`
	FileID     string      `json:"fileId"`
	FileName   string      `json:"fileName"`
	Detections []Detection `json:"vehicles"`
	Status     ItemStatus  `json:"status"`
	Error      string      `json:"error,omitempty"`
}

// Results aggregates one processing run. Detections only grow during a run.
type Results struct {
	RunID            string           `json:"runId"`
	TotalImages      int              `json:"totalImages"`
	VehiclesDetected int              `json:"vehiclesDetected"`
	Confidence       float64          `json:"confidence"`
	Detections       []ImageDetection `json:"detections"`
	StartedAt        time.Time        `json:"startedAt"`
	FinishedAt       time.Time        `json:"finishedAt,omitempty"`
}

// NewResults starts an empty result set for a batch of total images.
func NewResults(runID string, total int, startedAt time.Time) *Results {
	return &Results{
		RunID:       runID,
		TotalImages: total,
		Detections:  make([]ImageDetection, 0, total),
		StartedAt:   startedAt,
	}
}

// Append records the next processed image. Its first detection's confidence is
// folded into the running average over the images that produced a detection;
// images without detections leave the average unchanged.
func (r *Results) Append(item ImageDetection) {
	if len(item.Detections) > 0 {
		n := float64(r.scored())
		latest := item.Detections[0].Confidence
		r.Confidence = (r.Confidence*n + latest) / (n + 1)
	}
	r.VehiclesDetected += len(item.Detections)
	r.Detections = append(r.Detections, item)
}

func (r *Results) scored() int {
	n := 0
	for _, d := range r.Detections {
		if len(d.Detections) > 0 {
			n++
		}
	}
	return n
}

// Processed reports how many images have finished.
func (r *Results) Processed() int {
	return len(r.Detections)
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r *Results) Clone() *Results {
	if r == nil {
		return nil
	}
	out := *r
	out.Detections = make([]ImageDetection, len(r.Detections))
	for i, d := range r.Detections {
		d.Detections = append([]Detection(nil), d.Detections...)
		out.Detections[i] = d
	}
	return &out
}
