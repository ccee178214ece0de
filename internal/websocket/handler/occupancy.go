// internal/websocket/handler/occupancy.go
package handlers

import (
	"context"
	"fmt"

	"parking-service/internal/domain/report"
	wstypes "parking-service/internal/domain/websocket"
	ws "parking-service/internal/websocket"
)

// SnapshotSource provides the current occupancy summary.
type SnapshotSource interface {
	DashboardSummary(ctx context.Context) (*report.DashboardSummary, error)
}

// OccupancyHandler answers snapshot requests so a client that just
// connected can render the lot before the next live event arrives.
type OccupancyHandler struct {
	source SnapshotSource
}

func NewOccupancyHandler(source SnapshotSource) *OccupancyHandler {
	return &OccupancyHandler{source: source}
}

func (h *OccupancyHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeOccupancyList}
}

func (h *OccupancyHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	if msg.Type != wstypes.EventTypeOccupancyList {
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}

	summary, err := h.source.DashboardSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to load occupancy snapshot: %w", err)
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeOccupancyList, summary))
	return nil
}
