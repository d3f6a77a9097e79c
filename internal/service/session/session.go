package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"visiondemo/internal/logger"
	"visiondemo/internal/model"
	"visiondemo/internal/service/catalog"
	"visiondemo/internal/service/engine"
	"visiondemo/internal/service/preview"
	"visiondemo/internal/service/upload"

	"github.com/google/uuid"
)

var (
	// ErrEmptyBatch rejects a run with nothing uploaded.
	ErrEmptyBatch = errors.New("no files uploaded")
	// ErrProcessingAlreadyRunning rejects re-entry while a run is active.
	ErrProcessingAlreadyRunning = errors.New("processing already running")
	// ErrAlreadyCompleted rejects re-running a batch that has not changed since its last run.
	ErrAlreadyCompleted = errors.New("batch already processed")
	// ErrFileNotFound is returned when removing a file that is not in the batch.
	ErrFileNotFound = errors.New("file not in batch")
	// ErrInvalidMode and ErrInvalidScene reject unknown selections.
	ErrInvalidMode  = errors.New("invalid mode")
	ErrInvalidScene = errors.New("invalid scene")
)

// Phase is the lifecycle state derived from the controller flags.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseReady      Phase = "ready"
	PhaseProcessing Phase = "processing"
	PhaseCompleted  Phase = "completed"
)

// Snapshot is a copy of a session's state, safe to share. Version grows with
// every change, so a client holding a newer snapshot can ignore older ones.
type Snapshot struct {
	ID         string               `json:"id"`
	Version    uint64               `json:"version"`
	Mode       model.Mode           `json:"mode"`
	Scene      model.Scene          `json:"scene"`
	Phase      Phase                `json:"phase"`
	Files      []model.UploadedFile `json:"files"`
	Processing bool                 `json:"isProcessing"`
	Completed  bool                 `json:"isCompleted"`
	Results    *model.Results       `json:"results"`
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Previews *preview.Store
	Engine   engine.Engine
	Catalog  *catalog.Catalog
	Logger   *logger.Logger
	// OnRunComplete, when set, receives the final snapshot of every finished run.
	OnRunComplete func(Snapshot)
}

// Controller owns one visitor's upload, processing and result state.
type Controller struct {
	id    string
	logID string
	deps  Deps

	mu         sync.Mutex
	mode       model.Mode
	scene      model.Scene
	files      []model.UploadedFile
	processing bool
	completed  bool
	results    *model.Results
	version    uint64
	batch      uint64 // bumped whenever the set of files changes
	generation uint64 // bumped when a run's output must be discarded
	cancelRun  context.CancelFunc
	runDone    chan struct{}
	lastActive time.Time

	events *broker
}

// New creates a controller in the Idle phase with default selections.
func New(id string, deps Deps) *Controller {
	logID := logger.RedactID(id)
	now := time.Now()
	return &Controller{
		id:    id,
		logID: logID,
		deps:  deps,
		mode:  model.ModeTest,
		scene: model.SceneEBike,
		// Seeded from the clock so a session recreated under the same id
		// after eviction never reports an older version. Microseconds keep
		// it within JavaScript's safe integer range.
		version:    uint64(now.UnixMicro()),
		lastActive: now,
		events:     newBroker(logID, deps.Logger),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// LogID returns the redacted identifier used in log lines.
func (c *Controller) LogID() string {
	return c.logID
}

// UploadFiles appends the files to the batch, issuing a preview for each.
// It clears the completed flag and leaves existing results untouched. Files
// added while a run is active are not part of that run.
func (c *Controller) UploadFiles(files []upload.File) []model.UploadedFile {
	added := make([]model.UploadedFile, 0, len(files))
	for _, f := range files {
		h := c.deps.Previews.Create(f.Name, f.ContentType, f.Data)
		added = append(added, model.UploadedFile{
			ID:          uuid.New().String(),
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        int64(len(f.Data)),
			Preview:     string(h),
		})
	}

	c.mu.Lock()
	c.files = append(c.files, added...)
	c.completed = false
	c.batch++
	c.changed()
	total := len(c.files)
	c.publishLocked(EventUploaded)
	c.mu.Unlock()

	c.deps.Logger.Info("Session %s: %d file(s) uploaded, batch size %d", c.logID, len(added), total)
	return added
}

// StartProcessing launches a run over the current batch. It returns
// immediately; progress arrives through Subscribe and Snapshot. The state is
// left unchanged when the batch is empty, a run is active or the batch was
// already completed.
func (c *Controller) StartProcessing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.processing:
		return ErrProcessingAlreadyRunning
	case len(c.files) == 0:
		return ErrEmptyBatch
	case c.completed:
		return ErrAlreadyCompleted
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.generation++
	c.processing = true
	c.completed = false
	c.results = model.NewResults(uuid.New().String(), len(c.files), time.Now())
	c.cancelRun = cancel
	c.runDone = make(chan struct{})
	c.changed()

	job := engine.Job{
		Files: append([]model.UploadedFile(nil), c.files...),
		Label: c.deps.Catalog.Label(c.scene),
	}

	c.deps.Logger.Info("Session %s: run %s started over %d image(s)", c.logID, c.results.RunID, len(job.Files))
	c.publishLocked(EventRunStarted)

	go c.run(ctx, c.generation, c.batch, job, c.runDone)
	return nil
}

func (c *Controller) run(ctx context.Context, gen, batch uint64, job engine.Job, done chan struct{}) {
	defer close(done)

	_, err := c.deps.Engine.Process(ctx, job, func(item model.ImageDetection) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			return
		}
		c.results.Append(item)
		c.changed()
		c.publishLocked(EventProgress)
	})

	c.mu.Lock()
	if c.generation != gen {
		// Cleared mid-run; ClearAll already reset the state.
		c.mu.Unlock()
		return
	}
	c.processing = false
	c.cancelRun = nil
	c.changed()

	if err != nil {
		c.publishLocked(EventRunStopped)
		c.mu.Unlock()
		c.deps.Logger.Warning("Session %s: run stopped: %v", c.logID, err)
		return
	}

	// Files uploaded during the run still need one.
	c.completed = c.batch == batch
	c.results.FinishedAt = time.Now()
	c.publishLocked(EventRunCompleted)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.deps.Logger.Info("Session %s: run %s completed, %d/%d image(s), avg confidence %.4f",
		c.logID, snap.Results.RunID, snap.Results.Processed(), snap.Results.TotalImages, snap.Results.Confidence)
	if !snap.Completed {
		c.deps.Logger.Info("Session %s: batch grew during run %s, ready for another", c.logID, snap.Results.RunID)
	}

	if c.deps.OnRunComplete != nil {
		c.deps.OnRunComplete(snap)
	}
}

// ClearAll releases every preview, empties the batch and discards results.
// An active run is cancelled and its remaining output ignored.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	c.generation++
	files := c.files
	c.files = nil
	c.results = nil
	c.processing = false
	c.completed = false
	c.batch++
	c.changed()
	c.publishLocked(EventCleared)
	c.mu.Unlock()

	for _, f := range files {
		if err := c.deps.Previews.Release(preview.Handle(f.Preview)); err != nil {
			c.deps.Logger.Error("Session %s: release preview of %s: %v", c.logID, f.Name, err)
		}
	}

	c.deps.Logger.Info("Session %s: cleared %d file(s)", c.logID, len(files))
}

// RemoveFile takes a single file out of the batch and releases its preview.
func (c *Controller) RemoveFile(id string) error {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return ErrProcessingAlreadyRunning
	}

	idx := -1
	for i, f := range c.files {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	removed := c.files[idx]
	c.files = append(c.files[:idx:idx], c.files[idx+1:]...)
	c.completed = false
	c.batch++
	c.changed()
	c.publishLocked(EventFileRemoved)
	c.mu.Unlock()

	if err := c.deps.Previews.Release(preview.Handle(removed.Preview)); err != nil {
		c.deps.Logger.Error("Session %s: release preview of %s: %v", c.logID, removed.Name, err)
	}
	return nil
}

// SetMode changes the execution mode.
func (c *Controller) SetMode(mode string) error {
	m, err := model.ParseMode(mode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMode, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	c.changed()
	c.publishLocked(EventSelectionChanged)
	return nil
}

// SetScene changes the recognition scene. A running batch keeps the label it started with.
func (c *Controller) SetScene(scene string) error {
	s, err := model.ParseScene(scene)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.scene = s
	c.changed()
	c.publishLocked(EventSelectionChanged)
	return nil
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers for state-change events. The caller must Close the subscription.
func (c *Controller) Subscribe() *Subscription {
	return c.events.subscribe()
}

// Wait blocks until no run is active or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.runDone
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastActive reports when the session last changed state.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Busy reports whether a run is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Close clears the session, waits for a cancelled run to return and ends
// every subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	done := c.runDone
	c.mu.Unlock()

	c.ClearAll()
	if done != nil {
		<-done
	}
	c.events.close()
}

// changed records a state change. Callers hold c.mu.
func (c *Controller) changed() {
	c.version++
	c.lastActive = time.Now()
}

// publishLocked emits the current state while c.mu is held, so subscribers
// see events in the order the changes happened. The broker never blocks.
func (c *Controller) publishLocked(t EventType) {
	c.events.publish(Event{Type: t, Snapshot: c.snapshotLocked()})
}

func (c *Controller) phaseLocked() Phase {
	switch {
	case c.processing:
		return PhaseProcessing
	case len(c.files) == 0:
		return PhaseIdle
	case c.completed:
		return PhaseCompleted
	default:
		return PhaseReady
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         c.id,
		Version:    c.version,
		Mode:       c.mode,
		Scene:      c.scene,
		Phase:      c.phaseLocked(),
		Files:      append([]model.UploadedFile{}, c.files...),
		Processing: c.processing,
		Completed:  c.completed,
		Results:    c.results.Clone(),
	}
}
