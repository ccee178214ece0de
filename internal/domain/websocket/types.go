// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Occupancy events (server -> client)
	EventTypeSpotOccupied  EventType = "spot:occupied"
	EventTypeSpotReleased  EventType = "spot:released"
	EventTypeTicketOpened  EventType = "ticket:opened"
	EventTypeTicketClosed  EventType = "ticket:closed"
	EventTypeOccupancyList EventType = "occupancy:snapshot"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// Subscription channels that clients can subscribe to
type ChannelType string

const (
	ChannelOccupancy ChannelType = "occupancy"
	ChannelSystem    ChannelType = "system"
)

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SpotEventData for spot:occupied and spot:released
type SpotEventData struct {
	SpotID     int64  `json:"spot_id"`
	SpotNumber string `json:"spot_number,omitempty"`
	LotID      int64  `json:"lot_id,omitempty"`
	Size       string `json:"spot_size,omitempty"`
}

// TicketEventData for ticket:opened and ticket:closed
type TicketEventData struct {
	TicketID      int64    `json:"ticket_id"`
	VehicleNumber string   `json:"vehicle_number"`
	SpotID        int64    `json:"spot_id"`
	Status        string   `json:"status"`
	Amount        *float64 `json:"amount,omitempty"`
	ExitKind      string   `json:"exit_kind,omitempty"`
}

// NewMessage stamps an event with a time and a sortable id.
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
