package session

import (
	"sync"
	"visiondemo/internal/logger"
)

// EventType names a state change of a session.
type EventType string

const (
	EventUploaded         EventType = "uploaded"
	EventFileRemoved      EventType = "file_removed"
	EventCleared          EventType = "cleared"
	EventRunStarted       EventType = "run_started"
	EventProgress         EventType = "progress"
	EventRunCompleted     EventType = "run_completed"
	EventRunStopped       EventType = "run_stopped"
	EventSelectionChanged EventType = "selection_changed"
)

// subscriberBuffer bounds how far a slow subscriber may lag before events are dropped.
const subscriberBuffer = 64

// Event carries the session state right after a change.
type Event struct {
	Type     EventType `json:"type"`
	Snapshot Snapshot  `json:"session"`
}

// Subscription delivers events until Close is called.
type Subscription struct {
	C <-chan Event

	id     int
	ch     chan Event
	broker *broker
	once   sync.Once
}

// Close stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s.id)
	})
}

type broker struct {
	logID  string
	mu     sync.Mutex
	subs   map[int]*Subscription
	nextID int
	closed bool
	logger *logger.Logger
}

func newBroker(logID string, logger *logger.Logger) *broker {
	return &broker{
		logID:  logID,
		subs:   make(map[int]*Subscription),
		logger: logger,
	}
}

func (b *broker) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, broker: b, id: b.nextID}
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub.id] = sub
	b.nextID++
	return sub
}

func (b *broker) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warning("Session %s: subscriber %d lagging - dropped %s event", b.logID, sub.id, ev.Type)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	b.closed = true
}
