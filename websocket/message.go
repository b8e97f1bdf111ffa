package websocket

import (
	"time"
)

// Message type tags this gateway produces. Clients must tolerate tags
// they do not recognize.
const (
	TypeTradeUpdate        = "trade_update"
	TypeRobotStatus        = "robot_status"
	TypeMarketData         = "market_data"
	TypeSystemNotification = "system_notification"
)

// Message is the envelope written to clients. It is immutable once
// constructed; deliveries share the value and never mutate it.
type Message struct {
	Type      string      `json:"message_type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage stamps a payload with its type tag and the current UTC time.
func NewMessage(msgType string, data interface{}) Message {
	return Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
