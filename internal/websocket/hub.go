package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"salesdash/internal/infrastructure"
	"salesdash/internal/services"
)

type sessionMessage struct {
	sessionID string
	payload   []byte
	msgType   string
}

// Hub tracks the open pages of every session and fans server events out to
// the pages of the session they concern.
type Hub struct {
	// Registered clients, grouped by session
	sessions map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	notify     chan sessionMessage

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *Metrics

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	quit     chan struct{}
	running  bool
	stopOnce sync.Once
}

// NewHub creates a hub. Call Start before registering clients.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan sessionMessage, 64),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.sessions[client.sessionID]
			if !ok {
				set = make(map[*Client]struct{})
				h.sessions[client.sessionID] = set
			}
			set[client] = struct{}{}
			h.totalConnections++
			count := h.countLocked()
			h.mu.Unlock()

			ctx := client.context()
			h.metrics.recordConnect(ctx)
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			client.enqueue(newMessage(TypeConnection, 0, map[string]string{
				"status":    "connected",
				"client_id": client.id,
			}, client.traceID))

		case client := <-h.unregister:
			h.mu.Lock()
			removed := h.removeLocked(client)
			count := h.countLocked()
			h.mu.Unlock()

			if removed {
				ctx := client.context()
				h.metrics.recordDisconnect(ctx, time.Since(client.connectedAt))
				h.logger.InfoContext(ctx, "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case msg := <-h.notify:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.sessions[msg.sessionID]))
			for c := range h.sessions[msg.sessionID] {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			ctx := infrastructure.WithSessionID(context.Background(), msg.sessionID)
			delivered := 0
			for _, c := range clients {
				if c.offer(ctx, msg.msgType, msg.payload) {
					delivered++
				}
			}

			h.mu.Lock()
			h.messagesSent += int64(delivered)
			h.messagesDropped += int64(len(clients) - delivered)
			h.mu.Unlock()

			h.logger.DebugContext(ctx, "Session event delivered",
				slog.String("type", msg.msgType),
				slog.Int("clients", len(clients)),
				slog.Int("delivered", delivered))
		}
	}
}

// NotifySession queues event for every open page of the session. Events for
// sessions without pages are discarded.
func (h *Hub) NotifySession(sessionID string, event services.Event) {
	payload, err := json.Marshal(newMessage(event.Type, 0, event, ""))
	if err != nil {
		h.logger.Error("Error marshaling session event",
			slog.String("error", err.Error()),
			slog.String("type", event.Type))
		return
	}
	select {
	case h.notify <- sessionMessage{sessionID: sessionID, payload: payload, msgType: event.Type}:
	case <-h.quit:
	default:
		h.logger.Warn("Hub notify queue full, dropping event",
			slog.String("type", event.Type))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.closeSend()
	}
}

// Unregister removes a client. Safe to call after Stop.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// SessionClients returns the number of pages open for one session
func (h *Hub) SessionClients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Stop ends the hub loop and closes every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.running = false
		close(h.quit)
		for id, set := range h.sessions {
			for c := range set {
				c.closeSend()
			}
			delete(h.sessions, id)
		}
		h.mu.Unlock()
	})
}

// GetHubMetrics returns current hub counters
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    h.countLocked(),
		"active_sessions":   len(h.sessions),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_dropped":  h.messagesDropped,
	}
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

func (h *Hub) removeLocked(client *Client) bool {
	set, ok := h.sessions[client.sessionID]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.sessions, client.sessionID)
	}
	client.closeSend()
	return true
}
