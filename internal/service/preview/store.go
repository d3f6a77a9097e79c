package preview

import (
	"errors"
	"sync"
	"visiondemo/internal/logger"

	"github.com/google/uuid"
)

var (
	// ErrHandleNotFound is returned for a handle the store never issued.
	ErrHandleNotFound = errors.New("preview handle not found")
	// ErrHandleReleased is returned when a handle is released or opened after release.
	ErrHandleReleased = errors.New("preview handle already released")
)

// MaxTombstones bounds how many released handles are remembered for
// double-release detection. Older ones then report ErrHandleNotFound.
const MaxTombstones = 4096

// Handle identifies a renderable preview of an uploaded file.
type Handle string

// Preview is the servable content behind a handle.
type Preview struct {
	Name        string
	ContentType string
	Data        []byte
}

// Stats counts handle lifecycle events.
type Stats struct {
	Created  int `json:"created"`
	Released int `json:"released"`
	Live     int `json:"live"`
}

// Store keeps previews in memory until their handle is released.
type Store struct {
	mu       sync.RWMutex
	live     map[Handle]Preview
	released map[Handle]struct{}
	order    []Handle // released handles, oldest first
	limit    int
	stats    Stats
	logger   *logger.Logger
}

// NewStore creates an empty preview store.
func NewStore(logger *logger.Logger) *Store {
	return &Store{
		live:     make(map[Handle]Preview),
		released: make(map[Handle]struct{}),
		limit:    MaxTombstones,
		logger:   logger,
	}
}

// Create registers a preview and returns its fresh handle.
func (s *Store) Create(name, contentType string, data []byte) Handle {
	h := Handle(uuid.New().String())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.live[h] = Preview{Name: name, ContentType: contentType, Data: data}
	s.stats.Created++
	s.stats.Live++
	return h
}

// Release frees a handle. Each handle can be released exactly once.
func (s *Store) Release(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[h]; !ok {
		if _, done := s.released[h]; done {
			s.logger.Error("Double release of preview %s", h)
			return ErrHandleReleased
		}
		s.logger.Error("Release of unknown preview %s", h)
		return ErrHandleNotFound
	}

	delete(s.live, h)
	s.remember(h)
	s.stats.Released++
	s.stats.Live--
	return nil
}

// Open returns the preview behind a live handle.
func (s *Store) Open(h Handle) (Preview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.live[h]; ok {
		return p, nil
	}
	if _, done := s.released[h]; done {
		return Preview{}, ErrHandleReleased
	}
	return Preview{}, ErrHandleNotFound
}

func (s *Store) remember(h Handle) {
	s.released[h] = struct{}{}
	s.order = append(s.order, h)
	for len(s.order) > s.limit {
		delete(s.released, s.order[0])
		s.order[0] = ""
		s.order = s.order[1:]
	}
}

// Tombstones returns how many released handles are remembered.
func (s *Store) Tombstones() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.released)
}

// Stats returns a snapshot of the lifecycle counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
