// internal/handlers/entry/entry_handler.go
package entry

import (
	"net/http"

	"parking-service/internal/domain/parking"
	"parking-service/internal/pkg/response"
	parkingsvc "parking-service/internal/service/parking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EntryHandler struct {
	parkingService *parkingsvc.ParkingService
	logger         *zap.Logger
}

func NewEntryHandler(parkingService *parkingsvc.ParkingService, logger *zap.Logger) *EntryHandler {
	return &EntryHandler{
		parkingService: parkingService,
		logger:         logger,
	}
}

// GetConfig returns tariffs and supported vehicle types for the terminal display
func (h *EntryHandler) GetConfig(c *gin.Context) {
	response.Success(c, http.StatusOK, "entry configuration", h.parkingService.EntryConfig())
}

// CreateTicket allocates a spot and issues a ticket
func (h *EntryHandler) CreateTicket(c *gin.Context) {
	var req parking.OpenTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	handle, err := h.parkingService.OpenTicket(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to issue ticket", err)
		return
	}

	response.Success(c, http.StatusCreated, "ticket issued", handle)
}
