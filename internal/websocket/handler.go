package websocket

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"salesdash/internal/config"
	"salesdash/internal/infrastructure"
)

// Handler upgrades page connections and attaches them to the hub under the
// caller's session.
type Handler struct {
	hub        *Hub
	recomputer Recomputer
	upgrader   websocket.Upgrader
	opts       ClientOptions
	logger     *slog.Logger
}

// NewHandler creates the upgrade handler
func NewHandler(hub *Hub, recomputer Recomputer, validator RequestValidator, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.handler"))

	h := &Handler{
		hub:        hub,
		recomputer: recomputer,
		opts: ClientOptions{
			PongWait:        cfg.PongWait,
			PingPeriod:      cfg.PingPeriod,
			MaxMessageBytes: cfg.MaxMessageBytes,
			Validator:       validator,
		},
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, allowedOrigins)
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			logger.WarnContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}
	return h
}

// ServeHTTP upgrades the request. The session middleware must run first.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := infrastructure.GetSessionID(ctx)
	if sessionID == "" {
		http.Error(w, "session required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied
		return
	}

	traceID := infrastructure.GetTraceID(ctx)
	client := NewClient(h.hub, NewConnection(conn), sessionID, traceID, h.recomputer, h.opts, h.logger)
	h.hub.Register(client)

	h.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("client_id", client.id))

	go client.WritePump()
	go client.ReadPump()
}

// checkOrigin accepts same-host pages, listed origins, and clients that send
// no Origin header.
func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
