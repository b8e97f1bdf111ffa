package websocket

import (
	"sync"
)

// broadcastGroup fans one message out to every current subscriber. Each
// subscriber owns a bounded buffer; when a subscriber stops draining,
// its oldest unread messages are evicted rather than blocking the
// publisher or any other subscriber. Delivery is best effort and
// at most once.
type broadcastGroup struct {
	mu     sync.RWMutex
	subs   map[string]chan Message
	buffer int
}

func newBroadcastGroup(buffer int) *broadcastGroup {
	return &broadcastGroup{
		subs:   make(map[string]chan Message),
		buffer: buffer,
	}
}

// Subscribe registers a fresh receive channel under id. The caller must
// Unsubscribe with the same id once it stops draining the channel.
func (g *broadcastGroup) Subscribe(id string) <-chan Message {
	ch := make(chan Message, g.buffer)
	g.mu.Lock()
	g.subs[id] = ch
	g.mu.Unlock()
	return ch
}

func (g *broadcastGroup) Unsubscribe(id string) {
	g.mu.Lock()
	delete(g.subs, id)
	g.mu.Unlock()
}

// Publish enqueues msg for every current subscriber. Publishing to zero
// subscribers is fine. Never blocks.
func (g *broadcastGroup) Publish(msg Message) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, ch := range g.subs {
		if dropped := offer(ch, msg); dropped > 0 {
			log.Printf("Subscriber %s is lagging, dropped %d message(s)", id, dropped)
		}
	}
}

// offer enqueues msg on ch, evicting the oldest buffered entries until
// the send succeeds. Returns the number of messages evicted. Safe under
// concurrent producers and a concurrent consumer.
func offer(ch chan Message, msg Message) int {
	dropped := 0
	for {
		select {
		case ch <- msg:
			return dropped
		default:
		}
		select {
		case <-ch:
			dropped++
		default:
		}
	}
}
