package websocket

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// fakeConn is an in-memory transport standing in for a client
// connection. Reads block until the test injects a frame or closes the
// connection; written frames are captured for assertions.
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex
	frames   [][]byte
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-f.inbound:
		return websocket.TextMessage, frame, nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (f *fakeConn) SetReadLimit(limit int64) {}

func (f *fakeConn) SetReadDeadline(t time.Time) error { return nil }

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) SetPongHandler(h func(string) error) {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// failWrites makes every subsequent WriteMessage return err.
func (f *fakeConn) failWrites(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

// messages decodes the frames written so far.
func (f *fakeConn) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, 0, len(f.frames))
	for _, frame := range f.frames {
		var msg Message
		if err := json.Unmarshal(frame, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}
