package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tradepulse/ws-gateway/auth"
	"github.com/tradepulse/ws-gateway/broker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler bridges the HTTP boundary and the upstream event broker to
// the Manager.
type Handler struct {
	manager  *Manager
	broker   broker.MessageBroker
	verifier *auth.Verifier
}

func NewHandler(manager *Manager, messageBroker broker.MessageBroker, verifier *auth.Verifier) *Handler {
	return &Handler{
		manager:  manager,
		broker:   messageBroker,
		verifier: verifier,
	}
}

// HandleWebSocket authenticates the request, upgrades it and registers
// the connection. Authentication happens before the upgrade so rejects
// stay plain HTTP responses.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "Token not provided", http.StatusUnauthorized)
		return
	}

	userID, err := h.verifier.Verify(tokenString)
	if err != nil {
		log.Printf("Rejected connection: %v", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.manager.Register(userID, conn)
}

// ListenForEvents pumps backend events from the broker into the Manager
// until ctx is cancelled or the broker closes its channels.
func (h *Handler) ListenForEvents(ctx context.Context) error {
	trading, err := h.broker.Subscribe(ctx, broker.TradingEventsChannel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", broker.TradingEventsChannel, err)
	}
	global, err := h.broker.Subscribe(ctx, broker.BroadcastEventsChannel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", broker.BroadcastEventsChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-trading:
			if !ok {
				log.Printf("Channel %s closed", broker.TradingEventsChannel)
				return nil
			}
			h.dispatchUserEvent(event)
		case event, ok := <-global:
			if !ok {
				log.Printf("Channel %s closed", broker.BroadcastEventsChannel)
				return nil
			}
			h.dispatchBroadcastEvent(event)
		}
	}
}

func (h *Handler) dispatchUserEvent(event broker.Event) {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		log.Printf("Skipping %s event with bad user id %q: %v", event.Type, event.UserID, err)
		return
	}

	switch event.Type {
	case TypeTradeUpdate:
		h.manager.SendTradeUpdate(userID, event.Data)
	case TypeRobotStatus:
		h.manager.SendRobotStatus(userID, event.Data)
	default:
		log.Printf("Skipping unknown user event type %q", event.Type)
	}
}

func (h *Handler) dispatchBroadcastEvent(event broker.Event) {
	switch event.Type {
	case TypeMarketData:
		h.manager.SendMarketData(event.Data)
	case TypeSystemNotification:
		h.manager.SendSystemNotification(event.Data)
	default:
		log.Printf("Skipping unknown broadcast event type %q", event.Type)
	}
}
