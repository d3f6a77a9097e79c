package websocket

import (
	"sync"
	"time"
	"visiondemo/internal/logger"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type registration struct {
	conn    Conn
	session string
}

type message struct {
	session string
	data    []byte
}

// HubService fans session events out to the viewers of that session.
type HubService struct {
	clients    map[Conn]string // conn -> session id
	broadcast  chan message
	register   chan registration
	unregister chan Conn
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[Conn]string),
		broadcast:  make(chan message, 64),
		register:   make(chan registration),
		unregister: make(chan Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *HubService) Run() {
	for {
		select {
		case reg := <-h.register:
			h.mutex.Lock()
			h.clients[reg.conn] = reg.session
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected to session %s. Total: %d", logger.RedactID(reg.session), total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client, session := range h.clients {
				if session != msg.session {
					continue
				}
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every viewer connection.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *HubService) Register(client Conn, session string) {
	select {
	case h.register <- registration{conn: client, session: session}:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for every viewer of a session.
func (h *HubService) Broadcast(payload []byte, session string) {
	select {
	case h.broadcast <- message{session: session, data: payload}:
	case <-h.done:
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// GetSessionClientCount returns how many viewers watch a session.
func (h *HubService) GetSessionClientCount(session string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	n := 0
	for _, s := range h.clients {
		if s == session {
			n++
		}
	}
	return n
}
