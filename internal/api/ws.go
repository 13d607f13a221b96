package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yok-tottii/EzRecorder/internal/library"
	"github.com/yok-tottii/EzRecorder/internal/logger"
	"github.com/yok-tottii/EzRecorder/internal/recording"
	"github.com/yok-tottii/EzRecorder/internal/waveform"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// message is one event pushed to the web page
type message struct {
	Type    string            `json:"type"`
	Frame   *waveform.Frame   `json:"frame,omitempty"`
	Library *library.Snapshot `json:"library,omitempty"`
	State   *recording.Status `json:"state,omitempty"`
}

// upgrader accepts same-origin and localhost pages only
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow requests without Origin header (same-origin requests)
		if origin == "" {
			return true
		}
		if origin == "http://"+r.Host {
			return true
		}
		for _, prefix := range []string{"http://localhost", "http://127.0.0.1"} {
			if origin == prefix || strings.HasPrefix(origin, prefix+":") {
				return true
			}
		}
		return false
	},
}

// client is one connected page
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans events out to every connected client
type hub struct {
	log *logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func newHub(log *logger.Logger) *hub {
	return &hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// add registers c; false once the hub is closed
func (h *hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// remove unregisters c and closes its send queue
func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// count returns the number of connected clients
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues msg for every client. A client whose queue is full
// misses the message rather than stalling the sender.
func (h *hub) broadcast(msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Failed to encode %s event: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// close disconnects every client and rejects new ones
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// handleWebSocket handles GET /ws
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.deps.Logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.hub.add(c) {
		conn.Close()
		return
	}

	h.sendInitial(c)

	go h.writePump(c)
	h.readPump(c)
}

// sendInitial queues the current state so a new page does not wait for the next event
func (h *Handler) sendInitial(c *client) {
	var initial []message
	if h.deps.Recorder != nil {
		status := h.deps.Recorder.Status()
		initial = append(initial, message{Type: "state", State: &status})
	}
	if h.deps.Library != nil {
		snapshot := h.deps.Library.Snapshot()
		initial = append(initial, message{Type: "library", Library: &snapshot})
	}
	if h.deps.Waveform != nil {
		frame := h.deps.Waveform.LastFrame()
		initial = append(initial, message{Type: "waveform", Frame: &frame})
	}

	for _, msg := range initial {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// readPump discards incoming messages and keeps the read deadline alive
func (h *Handler) readPump(c *client) {
	defer func() {
		h.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.deps.Logger.Debug("WebSocket closed: %v", err)
			}
			return
		}
	}
}

// writePump sends queued events and pings until the queue is closed
func (h *Handler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
