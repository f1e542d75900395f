package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var errConnClosed = errors.New("connection closed")

// fakeConn is an in-memory Connection. Frames written by the server arrive on
// out; frames queued with push are returned by ReadMessage.
type fakeConn struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	readLimit int64
	pong      func(string) error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (f *fakeConn) push(v interface{}) {
	b, _ := json.Marshal(v)
	f.in <- b
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.done:
		return errConnClosed
	default:
	}
	if messageType == websocket.TextMessage {
		f.out <- data
	}
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-f.in:
		return websocket.TextMessage, b, nil
	case <-f.done:
		return 0, nil, errConnClosed
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) RemoteAddr() string               { return "127.0.0.1:5000" }

func (f *fakeConn) SetReadLimit(limit int64) {
	f.mu.Lock()
	f.readLimit = limit
	f.mu.Unlock()
}

func (f *fakeConn) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	f.pong = h
	f.mu.Unlock()
}

// next waits for the next server message
func (f *fakeConn) next(t *testing.T) Message {
	t.Helper()
	select {
	case b := <-f.out:
		var m Message
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server message")
		return Message{}
	}
}

// nextRaw waits for the next server message and keeps the payload undecoded
func (f *fakeConn) nextRaw(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	select {
	case b := <-f.out:
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server message")
		return nil
	}
}
