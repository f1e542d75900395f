package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
	"salesdash/internal/pipeline"
)

// ClientOptions tunes one connection. Zero values select the defaults.
type ClientOptions struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer
	PongWait time.Duration
	// Send pings with this period. Must be less than PongWait
	PingPeriod time.Duration
	// Maximum message size allowed from peer
	MaxMessageBytes int64
	// Upper bound on one dashboard recomputation
	RecomputeTimeout time.Duration
	// Outbound buffer length
	SendBuffer int
	// Validates filter payloads. Nil skips validation.
	Validator RequestValidator
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 8192
	}
	if o.RecomputeTimeout <= 0 {
		o.RecomputeTimeout = 30 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 16
	}
	return o
}

// Client is a middleman between one open page and the hub. Filter messages
// from the page are answered with a recomputed dashboard, in the order they
// arrive.
type Client struct {
	hub        *Hub
	conn       Connection
	recomputer Recomputer
	opts       ClientOptions

	// Buffered channel of outbound messages
	send     chan []byte
	sendMu   sync.Mutex
	sendDone bool

	id          string
	sessionID   string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	messagesSent     int64
	messagesReceived int64
}

// NewClient creates a client for an upgraded connection
func NewClient(hub *Hub, conn Connection, sessionID, traceID string, recomputer Recomputer, opts ClientOptions, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	opts = opts.withDefaults()

	id := uuid.New().String()
	ctx := infrastructure.WithSessionID(context.Background(), sessionID)
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Client{
		hub:         hub,
		conn:        conn,
		recomputer:  recomputer,
		opts:        opts,
		send:        make(chan []byte, opts.SendBuffer),
		id:          id,
		sessionID:   sessionID,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id)),
	}
}

func (c *Client) context() context.Context {
	return c.ctx
}

// ReadPump reads page messages until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.logger.InfoContext(c.ctx, "WebSocket client disconnected (readPump)",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", c.messagesReceived))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(c.ctx, "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}
		c.messagesReceived++
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		c.hub.metrics.recordMessage(c.ctx, "in", "invalid", len(raw))
		c.replyError(0, CodeBadMessage, "message is not valid JSON")
		return
	}
	c.hub.metrics.recordMessage(c.ctx, "in", in.Type, len(raw))

	switch in.Type {
	case TypeHeartbeat:
		c.logger.DebugContext(c.ctx, "Heartbeat received")
	case TypeFilter:
		c.recompute(in)
	default:
		c.replyError(in.Seq, CodeBadMessage, fmt.Sprintf("unknown message type %q", in.Type))
	}
}

func (c *Client) recompute(in inbound) {
	var req pipeline.Request
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, &req); err != nil {
			c.replyError(in.Seq, CodeBadFilter, "filter payload is malformed")
			return
		}
	}
	req = req.Normalize()
	if c.opts.Validator != nil {
		if err := c.opts.Validator.ValidateStruct(req); err != nil {
			c.replyError(in.Seq, CodeBadFilter, validationMessage(err))
			return
		}
	}
	q, err := req.Query()
	if err != nil {
		c.replyError(in.Seq, CodeBadFilter, err.Error())
		return
	}
	if c.recomputer == nil {
		c.replyError(in.Seq, CodeUnavailable, "live recomputation is disabled")
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RecomputeTimeout)
	defer cancel()

	start := time.Now()
	d, err := c.recomputer.Dashboard(ctx, c.sessionID, q)
	if err != nil {
		if errors.Is(err, context.Canceled) && c.ctx.Err() != nil {
			return
		}
		c.logger.WarnContext(ctx, "Live recompute failed",
			slog.String("error", err.Error()))
		c.replyError(in.Seq, CodeUnavailable, "dashboard could not be recomputed")
		return
	}
	c.logger.DebugContext(ctx, "Live recompute done",
		slog.Int64("seq", in.Seq),
		slog.Int("filtered_rows", d.FilteredRows),
		slog.Duration("duration", time.Since(start)))
	c.enqueue(newMessage(TypeDashboard, in.Seq, d, c.traceID))
}

func (c *Client) replyError(seq int64, code, message string) {
	c.enqueue(newMessage(TypeError, seq, ErrorData{Code: code, Message: message}, c.traceID))
}

func (c *Client) enqueue(msg Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.ErrorContext(c.ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("type", msg.Type))
		return false
	}
	return c.offer(c.ctx, msg.Type, payload)
}

// offer queues payload without blocking. A full buffer drops the message.
func (c *Client) offer(ctx context.Context, msgType string, payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendDone {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.hub.metrics.recordDropped(ctx, msgType)
		c.logger.WarnContext(ctx, "Client send buffer full, dropping message",
			slog.String("type", msgType))
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendDone {
		c.sendDone = true
		close(c.send)
	}
}

// WritePump writes queued messages and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.InfoContext(c.ctx, "WebSocket write pump stopped",
			slog.Int64("messages_sent", c.messagesSent))
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.ErrorContext(c.ctx, "Error writing message to WebSocket",
					slog.String("error", err.Error()))
				return
			}
			c.messagesSent++
			c.hub.metrics.recordMessage(c.ctx, "out", "server", len(message))

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.ctx, "Failed to send ping message",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// validationMessage flattens field errors into one line for the page
func validationMessage(err error) string {
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	fields, ok := apiErr.Details.([]apierrors.ValidationError)
	if !ok || len(fields) == 0 {
		return apiErr.Message
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}
