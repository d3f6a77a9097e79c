package ai

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"visiondemo/internal/logger"
	"visiondemo/internal/model"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when the preview bytes decode to nothing.
var ErrEmptyImage = errors.New("decoded image is empty")

var (
	testColor       = color.RGBA{R: 0, G: 122, B: 255, A: 0}
	productionColor = color.RGBA{R: 52, G: 199, B: 89, A: 0}
)

// AnnotatorService draws detection boxes onto uploaded previews.
type AnnotatorService struct {
	logger *logger.Logger
}

// NewAnnotatorService creates an annotator.
func NewAnnotatorService(logger *logger.Logger) *AnnotatorService {
	return &AnnotatorService{logger: logger}
}

// DrawDetections draws each detection's box and label on the image and returns
// a re-encoded JPEG buffer. Box color follows the page mode.
func (s *AnnotatorService) DrawDetections(img []byte, detections []model.Detection, mode model.Mode) ([]byte, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, ErrEmptyImage
	}

	boxColor := testColor
	if mode == model.ModeProduction {
		boxColor = productionColor
	}

	for _, detection := range detections {
		box := detection.BoundingBox
		rect := image.Rect(int(box.X), int(box.Y), int(box.X+box.Width), int(box.Y+box.Height)).
			Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))
		if rect.Empty() {
			continue
		}

		if err := gocv.Rectangle(&mat, rect, boxColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.Label, detection.Confidence)
		pt := image.Pt(rect.Min.X, max(rect.Min.Y-5, 12))
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, boxColor, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		s.logger.Error("Failed to encode image: %v", err)
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
