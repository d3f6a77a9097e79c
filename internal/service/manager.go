package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"visiondemo/internal/config"
	"visiondemo/internal/logger"
	"visiondemo/internal/model"
	"visiondemo/internal/repository"
	"visiondemo/internal/service/ai"
	"visiondemo/internal/service/catalog"
	"visiondemo/internal/service/engine"
	"visiondemo/internal/service/preview"
	"visiondemo/internal/service/session"
	"visiondemo/internal/service/websocket"
)

// ErrNotProcessed is returned when asking for the annotation of an image without results.
var ErrNotProcessed = errors.New("image not processed")

// Manager owns every visitor session and the services they share.
type Manager struct {
	previews         *preview.Store
	engine           engine.Engine
	catalog          *catalog.Catalog
	annotator        *ai.AnnotatorService
	websocketService *websocket.HubService
	runRepo          repository.RunRepository // nil when history is disabled
	logger           *logger.Logger

	sessionTTL time.Duration
	sweepEvery time.Duration

	mu       sync.Mutex
	sessions map[string]*session.Controller
	wg       sync.WaitGroup
}

func NewManager(previews *preview.Store, eng engine.Engine, cat *catalog.Catalog, annotator *ai.AnnotatorService,
	websocketService *websocket.HubService, runRepo repository.RunRepository, config *config.Config, logger *logger.Logger) *Manager {
	return &Manager{
		previews:         previews,
		engine:           eng,
		catalog:          cat,
		annotator:        annotator,
		websocketService: websocketService,
		runRepo:          runRepo,
		logger:           logger,
		sessionTTL:       config.SessionTTL,
		sweepEvery:       config.SessionSweepEvery,
		sessions:         make(map[string]*session.Controller),
	}
}

// Session returns the controller for id, creating it on first use.
func (m *Manager) Session(id string) *session.Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[id]; ok {
		return c
	}

	c := session.New(id, session.Deps{
		Previews:      m.previews,
		Engine:        m.engine,
		Catalog:       m.catalog,
		Logger:        m.logger,
		OnRunComplete: m.recordRun,
	})
	m.sessions[id] = c

	sub := c.Subscribe()
	m.wg.Add(1)
	go m.forwardEvents(id, sub)

	m.logger.Info("Session %s created. Total: %d", c.LogID(), len(m.sessions))
	return c
}

// Lookup returns an existing session.
func (m *Manager) Lookup(id string) (*session.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	return c, ok
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// forwardEvents relays a session's events to its websocket viewers.
func (m *Manager) forwardEvents(id string, sub *session.Subscription) {
	defer m.wg.Done()

	for ev := range sub.C {
		msg, err := json.Marshal(ev)
		if err != nil {
			m.logger.Error("Session %s: encode %s event: %v", logger.RedactID(id), ev.Type, err)
			continue
		}
		m.websocketService.Broadcast(msg, id)
	}
}

// Run evicts idle sessions every sweep interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.EvictIdle(now)
		}
	}
}

// EvictIdle closes sessions idle for longer than the TTL. Sessions with a run
// in flight are kept. It returns the number of evicted sessions.
func (m *Manager) EvictIdle(now time.Time) int {
	m.mu.Lock()
	var stale []*session.Controller
	for id, c := range m.sessions {
		if c.Busy() || now.Sub(c.LastActive()) < m.sessionTTL {
			continue
		}
		stale = append(stale, c)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, c := range stale {
		c.Close()
		m.logger.Info("Session %s evicted after idling", c.LogID())
	}
	return len(stale)
}

// recordRun stores a finished run in the history when enabled.
func (m *Manager) recordRun(snap session.Snapshot) {
	if m.runRepo == nil || snap.Results == nil {
		return
	}

	res := snap.Results
	run := &model.RunRecord{
		RunID:            res.RunID,
		SessionID:        snap.ID,
		Scene:            snap.Scene,
		Mode:             snap.Mode,
		TotalImages:      res.TotalImages,
		VehiclesDetected: res.VehiclesDetected,
		Confidence:       res.Confidence,
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
	}

	var detections []model.RunDetection
	for _, item := range res.Detections {
		for _, d := range item.Detections {
			detections = append(detections, model.RunDetection{
				ImageIndex: item.ImageIndex,
				FileName:   item.FileName,
				Label:      d.Label,
				X:          d.BoundingBox.X,
				Y:          d.BoundingBox.Y,
				Width:      d.BoundingBox.Width,
				Height:     d.BoundingBox.Height,
				Confidence: d.Confidence,
			})
		}
	}

	if _, err := m.runRepo.Insert(run, detections); err != nil {
		m.logger.Error("Error saving run %s to history: %v", res.RunID, err)
		return
	}
	m.logger.Info("Run %s saved to history", res.RunID)
}

// RecentRuns lists the latest completed runs; empty when history is disabled.
func (m *Manager) RecentRuns(limit int) ([]model.RunRecord, error) {
	if m.runRepo == nil {
		return []model.RunRecord{}, nil
	}
	return m.runRepo.GetRecent(limit)
}

// RunDetail returns a stored run with its detections. A missing run yields nil.
func (m *Manager) RunDetail(runID string) (*model.RunRecord, []model.RunDetection, error) {
	if m.runRepo == nil {
		return nil, nil, nil
	}
	run, err := m.runRepo.GetByRunID(runID)
	if err != nil || run == nil {
		return nil, nil, err
	}
	detections, err := m.runRepo.GetDetections(run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, detections, nil
}

// Annotated renders the processed image at index with its detections drawn on.
func (m *Manager) Annotated(c *session.Controller, index int) ([]byte, error) {
	snap := c.Snapshot()
	if snap.Results == nil {
		return nil, ErrNotProcessed
	}

	var item *model.ImageDetection
	for i := range snap.Results.Detections {
		if snap.Results.Detections[i].ImageIndex == index {
			item = &snap.Results.Detections[i]
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("%w: index %d", ErrNotProcessed, index)
	}

	for _, f := range snap.Files {
		if f.ID != item.FileID {
			continue
		}
		p, err := m.previews.Open(preview.Handle(f.Preview))
		if err != nil {
			return nil, err
		}
		return m.annotator.DrawDetections(p.Data, item.Detections, snap.Mode)
	}
	return nil, fmt.Errorf("%w: %s", session.ErrFileNotFound, item.FileID)
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetPreviewStore() *preview.Store {
	return m.previews
}

func (m *Manager) GetCatalog() *catalog.Catalog {
	return m.catalog
}

// Stop closes every session, cancelling active runs, and waits for event forwarders.
func (m *Manager) Stop() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session.Controller)
	m.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
	m.wg.Wait()
	m.logger.Info("🛑 All sessions closed")
}
