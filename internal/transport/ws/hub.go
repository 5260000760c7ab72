package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Monitor message types besides the flow events
const (
	MsgMonitorWelcome MessageType = "monitor_welcome"
	MsgError          MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans flow events out to admin monitor connections
type Hub struct {
	monitors map[*Connection]bool

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once

	log *zap.Logger
}

// Connection represents a monitor WebSocket connection
type Connection struct {
	Admin string
	Send  chan []byte
}

// NewConnection creates a connection with a buffered send queue
func NewConnection(admin string) *Connection {
	return &Connection{Admin: admin, Send: make(chan []byte, 256)}
}

// NewHub creates a new WebSocket hub and starts its loop
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		monitors:   make(map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        log,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.monitors[conn] = true
			h.mu.Unlock()
			h.log.Info("monitor connected", zap.String("admin", conn.Admin))

		case conn := <-h.unregister:
			h.mu.Lock()
			if h.monitors[conn] {
				delete(h.monitors, conn)
				close(conn.Send)
				h.log.Info("monitor disconnected", zap.String("admin", conn.Admin))
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.monitors {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for conn := range h.monitors {
				delete(h.monitors, conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// MonitorCount returns the number of connected monitors
func (h *Hub) MonitorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.monitors)
}

// BroadcastToMonitors sends an event to every monitor (implements service.Broadcaster).
// It never blocks the caller: events are dropped when the queue is full.
func (h *Hub) BroadcastToMonitors(msgType string, payload interface{}) {
	data, err := encode(MessageType(msgType), payload)
	if err != nil {
		h.log.Warn("encode monitor event", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.log.Warn("monitor queue full, event dropped", zap.String("type", msgType))
	}
}

// Close stops the hub and closes every monitor queue
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func encode(msgType MessageType, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: msgType, Payload: raw})
}
