package broker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Presence event types published on PresenceEventsChannel.
const (
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
)

const presencePublishTimeout = 10 * time.Second

// PresencePublisher reports connection lifecycle to backend services so
// they can track which users are online. Failures are logged and
// dropped; presence is advisory and must never affect the connection
// itself.
type PresencePublisher struct {
	broker MessageBroker
}

func NewPresencePublisher(messageBroker MessageBroker) *PresencePublisher {
	return &PresencePublisher{broker: messageBroker}
}

// ConnectionOpened publishes a user_connected event.
func (p *PresencePublisher) ConnectionOpened(userID uuid.UUID, connectionID string) {
	p.publish(EventUserConnected, userID, connectionID)
}

// ConnectionClosed publishes a user_disconnected event.
func (p *PresencePublisher) ConnectionClosed(userID uuid.UUID, connectionID string) {
	p.publish(EventUserDisconnected, userID, connectionID)
}

func (p *PresencePublisher) publish(eventType string, userID uuid.UUID, connectionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), presencePublishTimeout)
	defer cancel()

	event := Event{
		Type:   eventType,
		UserID: userID.String(),
		Data:   map[string]interface{}{"connection_id": connectionID},
	}
	if err := p.broker.Publish(ctx, PresenceEventsChannel, event); err != nil {
		log.Printf("Failed to publish %s event for user %s: %v", eventType, userID, err)
	}
}
