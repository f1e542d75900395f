package websocket

import (
	"encoding/json"
	"time"
)

// Message types
const (
	TypeConnection = "connection"
	TypeHeartbeat  = "heartbeat"
	TypeFilter     = "filter"
	TypeDashboard  = "dashboard"
	TypeError      = "error"
)

// Error codes sent in TypeError messages
const (
	CodeBadMessage  = "bad_message"
	CodeBadFilter   = "bad_filter"
	CodeUnavailable = "dataset_unavailable"
)

// Message is the envelope of every server-to-client frame.
type Message struct {
	Type      string      `json:"type"`
	Seq       int64       `json:"seq,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// ErrorData is the payload of a TypeError message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// inbound is a client-to-server frame. Seq is echoed back so the page can
// discard answers to filter states it has already moved past.
type inbound struct {
	Type string          `json:"type"`
	Seq  int64           `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newMessage(msgType string, seq int64, data interface{}, traceID string) Message {
	return Message{
		Type:      msgType,
		Seq:       seq,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   traceID,
	}
}
