package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message types pushed to ops subscribers
const (
	MsgSubscribed = "subscribed"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	QuizID  string          `json:"quizId"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// Connection is one ops portal subscriber of a quiz feed
type Connection struct {
	QuizID     string
	OperatorID string
	Send       chan []byte
}

// NewConnection creates a subscriber with a buffered send queue
func NewConnection(quizID, operatorID string) *Connection {
	return &Connection{
		QuizID:     quizID,
		OperatorID: operatorID,
		Send:       make(chan []byte, 256),
	}
}

// Hub fans live quiz events out to ops subscribers, keyed by quiz id
type Hub struct {
	conns map[string]map[*Connection]struct{}
	mu    sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *Message
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once

	log *zap.Logger
	now func() time.Time
}

// NewHub creates a hub and starts its loop. Call Close to stop it.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		conns:      make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		log:        log.Named("ws"),
		now:        time.Now,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for quizID, set := range h.conns {
				for conn := range set {
					close(conn.Send)
				}
				delete(h.conns, quizID)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.QuizID] == nil {
				h.conns[conn.QuizID] = make(map[*Connection]struct{})
			}
			h.conns[conn.QuizID][conn] = struct{}{}
			h.mu.Unlock()
			h.log.Info("ops subscriber connected",
				zap.String("quizId", conn.QuizID),
				zap.String("operatorId", conn.OperatorID))

		case conn := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.conns[conn.QuizID]; ok {
				if _, ok := set[conn]; ok {
					delete(set, conn)
					close(conn.Send)
					if len(set) == 0 {
						delete(h.conns, conn.QuizID)
					}
					h.log.Info("ops subscriber disconnected",
						zap.String("quizId", conn.QuizID),
						zap.String("operatorId", conn.OperatorID))
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("failed to encode live event", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			h.mu.RLock()
			for conn := range h.conns[msg.QuizID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast sends an event to every subscriber of a quiz (implements service.Broadcaster)
func (h *Hub) Broadcast(quizID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("failed to encode payload", zap.String("type", msgType), zap.Error(err))
		return
	}
	msg := &Message{
		Type:    msgType,
		QuizID:  quizID,
		Payload: data,
		At:      h.now(),
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Subscribers counts open connections for a quiz
func (h *Hub) Subscribers(quizID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[quizID])
}

// Close stops the hub loop and closes every subscriber queue
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.stopped
}
