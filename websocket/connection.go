package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxFrameSize   = 1024
	outboundBuffer = 100
)

// Conn is the slice of *websocket.Conn the delivery engine touches.
// Kept as an interface so tests can stand in an in-memory transport.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// connection is one registered client connection: its identity, its
// private outbound queue and the transport it writes to. The Manager's
// registry owns the record; the two pumps hold a shared reference that
// goes inert once the record is removed.
type connection struct {
	id       string
	userID   uuid.UUID
	conn     Conn
	outbound chan Message

	closeOnce sync.Once
	done      chan struct{}

	// Serializes data frames and control frames on the transport.
	writeMu sync.Mutex
}

func newConnection(userID uuid.UUID, conn Conn) *connection {
	return &connection{
		id:       uuid.NewString(),
		userID:   userID,
		conn:     conn,
		outbound: make(chan Message, outboundBuffer),
		done:     make(chan struct{}),
	}
}

// shutdown closes the transport and releases both pumps. Safe to call
// from either pump or from the Manager; only the first call acts.
func (c *connection) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// closeWithReason sends a close frame before tearing the transport
// down. Best effort; the peer may already be gone.
func (c *connection) closeWithReason(code int, reason string) {
	c.writeMu.Lock()
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait),
	)
	c.writeMu.Unlock()
	c.shutdown()
}

// readPump drains inbound frames until the client closes or the
// transport errors. No client command protocol is defined; text frames
// are logged and otherwise ignored.
func (c *connection) readPump(m *Manager) {
	defer m.Remove(c.id)

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error on connection %s: %v", c.id, err)
			}
			return
		}
		if msgType == websocket.TextMessage {
			log.Printf("Received frame from user %s on connection %s: %s", c.userID, c.id, frame)
		}
	}
}

// writePump multiplexes the private outbound queue and the global
// broadcast subscription onto the transport. No ordering is guaranteed
// across the two sources. Exits on transport write failure or when the
// record is removed.
func (c *connection) writePump(m *Manager, global <-chan Message) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		m.Remove(c.id)
	}()

	for {
		select {
		case msg := <-c.outbound:
			if !c.writeMessage(msg) {
				return
			}
		case msg := <-global:
			if !c.writeMessage(msg) {
				return
			}
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				log.Printf("Ping failed on connection %s: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// writeMessage serializes and writes one frame. A serialization failure
// skips that frame only; a transport failure ends the connection.
func (c *connection) writeMessage(msg Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Dropping unserializable %s message on connection %s: %v", msg.Type, c.id, err)
		return true
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("Write failed on connection %s: %v", c.id, err)
		return false
	}
	return true
}
