package websocket

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// globalBuffer bounds the broadcast subscription of each connection.
const globalBuffer = 1000

// PresenceNotifier is told when connections are registered and removed.
// Notifications fire from their own goroutines; implementations may
// block without holding up the registry.
type PresenceNotifier interface {
	ConnectionOpened(userID uuid.UUID, connectionID string)
	ConnectionClosed(userID uuid.UUID, connectionID string)
}

// Manager is the connection registry and fan-out facade. Construct one
// instance and hand it to whatever needs to publish events.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*connection

	global   *broadcastGroup
	wg       sync.WaitGroup
	presence PresenceNotifier
}

func NewManager() *Manager {
	return &Manager{
		connections: make(map[string]*connection),
		global:      newBroadcastGroup(globalBuffer),
	}
}

// SetPresenceNotifier installs the lifecycle listener. Must be called
// during wiring, before the first Register.
func (m *Manager) SetPresenceNotifier(n PresenceNotifier) {
	m.presence = n
}

// Register inserts a record for an authenticated user's transport and
// starts its two delivery pumps. Returns the new connection id without
// waiting on any network I/O.
func (m *Manager) Register(userID uuid.UUID, conn Conn) string {
	c := newConnection(userID, conn)
	global := m.global.Subscribe(c.id)

	m.mu.Lock()
	m.connections[c.id] = c
	m.mu.Unlock()

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		c.readPump(m)
	}()
	go func() {
		defer m.wg.Done()
		defer m.global.Unsubscribe(c.id)
		c.writePump(m, global)
	}()

	if m.presence != nil {
		go m.presence.ConnectionOpened(c.userID, c.id)
	}

	log.Printf("Connection %s established for user %s", c.id, userID)
	return c.id
}

// Remove deletes the record and tears its transport down. Both pumps
// race to call this on their exit paths; calls after the first, or with
// an unknown id, are no-ops.
func (m *Manager) Remove(connectionID string) {
	m.mu.Lock()
	c, ok := m.connections[connectionID]
	if ok {
		delete(m.connections, connectionID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	c.shutdown()

	if m.presence != nil {
		go m.presence.ConnectionClosed(c.userID, c.id)
	}

	log.Printf("Connection %s removed for user %s", c.id, c.userID)
}

// CountConnections reports the number of live connections. The value is
// a snapshot and may trail concurrent connects and disconnects.
func (m *Manager) CountConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// ConnectionIDsForUser returns a snapshot of the user's connection ids.
func (m *Manager) ConnectionIDsForUser(userID uuid.UUID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, c := range m.connections {
		if c.userID == userID {
			ids = append(ids, id)
		}
	}
	return ids
}

// SendToUser enqueues msg on every connection the user currently has
// open. A user with no connections is simply offline; nothing happens.
func (m *Manager) SendToUser(userID uuid.UUID, msg Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.connections {
		if c.userID != userID {
			continue
		}
		if dropped := offer(c.outbound, msg); dropped > 0 {
			log.Printf("Connection %s is backlogged, dropped %d message(s)", c.id, dropped)
		}
	}
}

// SendToAll publishes msg to every current connection. Publishing with
// no connections registered is fine.
func (m *Manager) SendToAll(msg Message) {
	m.global.Publish(msg)
}

// SendTradeUpdate notifies one user's connections of a trade event.
func (m *Manager) SendTradeUpdate(userID uuid.UUID, data interface{}) {
	m.SendToUser(userID, NewMessage(TypeTradeUpdate, data))
}

// SendRobotStatus notifies one user's connections of a robot state change.
func (m *Manager) SendRobotStatus(userID uuid.UUID, data interface{}) {
	m.SendToUser(userID, NewMessage(TypeRobotStatus, data))
}

// SendMarketData broadcasts a market tick to all connections.
func (m *Manager) SendMarketData(data interface{}) {
	m.SendToAll(NewMessage(TypeMarketData, data))
}

// SendSystemNotification broadcasts a system alert to all connections.
func (m *Manager) SendSystemNotification(data interface{}) {
	m.SendToAll(NewMessage(TypeSystemNotification, data))
}

// CloseAll sends a going-away close frame to every connection and
// removes it. Used during server shutdown.
func (m *Manager) CloseAll(reason string) {
	m.mu.RLock()
	conns := make([]*connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		log.Printf("Closing connection %s: %s", c.id, reason)
		c.closeWithReason(websocket.CloseGoingAway, reason)
		m.Remove(c.id)
	}
}

// WaitForCompletion blocks until every delivery pump has exited.
func (m *Manager) WaitForCompletion() {
	m.wg.Wait()
}
