// Package monitor exposes live training progress over WebSocket so a
// dashboard can follow epochs as they complete. Entirely optional: the
// pipeline works identically with a nil hub.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types broadcast by the trainer.
const (
	EventRunStarted  = "run_started"
	EventEpoch       = "epoch"
	EventRunFinished = "run_finished"
)

// Message is the JSON envelope sent to every connected client.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub fans broadcast messages out to connected WebSocket clients.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	broadcast chan []byte
	upgrader  websocket.Upgrader
	server    *http.Server
}

// NewHub builds a hub; Start must be called before it accepts clients.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:    logger,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 64),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start serves the /ws endpoint on the given port and runs the broadcast
// loop until ctx is canceled.
func (h *Hub) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	h.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go h.run(ctx)
	go func() {
		<-ctx.Done()
		_ = h.server.Close()
	}()

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("monitor server failed", zap.Error(err))
		}
	}()
	h.logger.Info("training monitor listening", zap.Int("port", port))
	return nil
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.logger.Info("monitor client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Drain reads so pings and close frames are processed.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.clients = make(map[*websocket.Conn]bool)
			h.mu.Unlock()
			return
		case payload := <-h.broadcast:
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					h.drop(conn)
				}
			}
		}
	}
}

// Broadcast queues an event for all clients. Never blocks the trainer: the
// message is dropped when the queue is full.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(Message{Type: eventType, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		h.logger.Warn("marshal monitor event failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
