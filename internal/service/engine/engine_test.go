package engine

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"
	"visiondemo/internal/logger"
	"visiondemo/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func files(n int) []model.UploadedFile {
	out := make([]model.UploadedFile, n)
	for i := range out {
		out[i] = model.UploadedFile{ID: fmt.Sprint(i), Name: fmt.Sprintf("img_%d.jpg", i)}
	}
	return out
}

func TestSimulated_OneRecordPerFileInOrder(t *testing.T) {
	for _, n := range []int{0, 1, 5, 40} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			e := NewSimulated(0, rand.NewSource(int64(n)), logger.Nop())

			var progressed []int
			out, err := e.Process(context.Background(), Job{Files: files(n), Label: "Electric Vehicle"},
				func(d model.ImageDetection) { progressed = append(progressed, d.ImageIndex) })
			require.NoError(t, err)
			require.Len(t, out, n)

			for i, d := range out {
				assert.Equal(t, i, d.ImageIndex)
				assert.Equal(t, fmt.Sprintf("img_%d.jpg", i), d.FileName)
				assert.Equal(t, model.ItemOK, d.Status)
				require.Len(t, d.Detections, 1)
				assert.Equal(t, i, progressed[i])
			}
		})
	}
}

func TestSimulated_FabricatedRanges(t *testing.T) {
	e := NewSimulated(0, rand.NewSource(42), logger.Nop())
	out, err := e.Process(context.Background(), Job{Files: files(500), Label: "Road Defect"}, nil)
	require.NoError(t, err)

	for _, item := range out {
		d := item.Detections[0]
		assert.Equal(t, "Road Defect", d.Label)
		assert.GreaterOrEqual(t, d.Confidence, 0.95)
		assert.Less(t, d.Confidence, 1.0)
		assert.GreaterOrEqual(t, d.BoundingBox.X, 100.0)
		assert.Less(t, d.BoundingBox.X, 300.0)
		assert.GreaterOrEqual(t, d.BoundingBox.Y, 100.0)
		assert.Less(t, d.BoundingBox.Y, 300.0)
		assert.GreaterOrEqual(t, d.BoundingBox.Width, 200.0)
		assert.Less(t, d.BoundingBox.Width, 300.0)
		assert.GreaterOrEqual(t, d.BoundingBox.Height, 150.0)
		assert.Less(t, d.BoundingBox.Height, 200.0)
	}
}

func TestSimulated_DeterministicWithSeed(t *testing.T) {
	a, _ := NewSimulated(0, rand.NewSource(7), logger.Nop()).Process(context.Background(), Job{Files: files(3)}, nil)
	b, _ := NewSimulated(0, rand.NewSource(7), logger.Nop()).Process(context.Background(), Job{Files: files(3)}, nil)
	assert.Equal(t, a, b)
}

func TestSimulated_DelayPerItem(t *testing.T) {
	delay := 20 * time.Millisecond
	e := NewSimulated(delay, rand.NewSource(1), logger.Nop())

	start := time.Now()
	out, err := e.Process(context.Background(), Job{Files: files(3)}, nil)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.GreaterOrEqual(t, time.Since(start), 3*delay)
}

func TestSimulated_CancelStopsBetweenItems(t *testing.T) {
	e := NewSimulated(10*time.Millisecond, rand.NewSource(1), logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	out, err := e.Process(ctx, Job{Files: files(10)}, func(d model.ImageDetection) {
		if d.ImageIndex == 1 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, out, 2)
}
