package websocket

import (
	"context"
	"time"

	"salesdash/internal/pipeline"
)

// Connection is the part of a websocket connection the pumps use. It lets
// tests drive a client without a network.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// Recomputer rebuilds a session's dashboard for a filter change
type Recomputer interface {
	Dashboard(ctx context.Context, sessionID string, q pipeline.Query) (*pipeline.Dashboard, error)
}

// RequestValidator checks a filter request against the same rules the HTTP
// query uses
type RequestValidator interface {
	ValidateStruct(v interface{}) error
}
