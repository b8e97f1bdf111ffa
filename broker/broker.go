package broker

import (
	"context"
)

// Channels the gateway exchanges events with backend services on.
// Trading events are user-scoped, broadcast events go to everyone, and
// presence events flow the other way: the gateway reports connection
// lifecycle so backend services know who is online.
const (
	TradingEventsChannel   = "trading-events"
	BroadcastEventsChannel = "broadcast-events"
	PresenceEventsChannel  = "presence-events"
)

// Event is a backend-originated notification the gateway fans out to
// connected clients, or a presence notification flowing back. UserID is
// set for user-scoped events and empty for broadcast events.
type Event struct {
	Type   string      `json:"event_type"`
	UserID string      `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
}

// MessageBroker carries events between backend services and the gateway.
type MessageBroker interface {
	Publish(ctx context.Context, channel string, event Event) error

	Subscribe(ctx context.Context, channel string) (<-chan Event, error)

	Close() error
}
