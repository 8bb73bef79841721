package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/landmarker/internal/video"
)

// writeTimeout bounds a single WebSocket write so a slow client cannot stall the video loop.
const writeTimeout = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type pointMessage struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// landmarksMessage is the JSON sent to clients for every result.
type landmarksMessage struct {
	Index     int                  `json:"index"`
	Part      video.Part           `json:"part"`
	Timestamp int64                `json:"timestamp"`
	Landmarks map[int]pointMessage `json:"landmarks"`
}

// Hub broadcasts video results to connected WebSocket clients. It implements video.Sink.
type Hub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	writeMu sync.Mutex
	logger  *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer h.remove(conn)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Emit sends r to every client. Clients that fail to receive it are dropped; Emit itself
// never fails so a disconnected viewer does not stop the video.
func (h *Hub) Emit(r video.Result) error {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return nil
	}
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	msg, err := json.Marshal(toMessage(r))
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.WithError(err).Debug("dropping websocket client")
			h.remove(conn)
			conn.Close()
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func toMessage(r video.Result) landmarksMessage {
	lm := make(map[int]pointMessage, len(r.Landmarks))
	for i, p := range r.Landmarks {
		lm[i] = pointMessage{X: p.X, Y: p.Y}
	}
	return landmarksMessage{
		Index:     r.Index,
		Part:      r.Part,
		Timestamp: r.Time.UnixMilli(),
		Landmarks: lm,
	}
}
