// internal/service/parking/events.go
package parking

import (
	wstypes "parking-service/internal/domain/websocket"
)

// EventPublisher receives occupancy events after a transaction commits.
// Implementations must not block.
type EventPublisher interface {
	PublishOccupancy(eventType wstypes.EventType, data interface{})
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishOccupancy(wstypes.EventType, interface{}) {}
