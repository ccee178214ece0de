// internal/handlers/exit/exit_handler.go
package exit

import (
	"net/http"
	"strconv"

	"parking-service/internal/domain/parking"
	"parking-service/internal/pkg/response"
	parkingsvc "parking-service/internal/service/parking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ExitHandler struct {
	parkingService *parkingsvc.ParkingService
	logger         *zap.Logger
}

func NewExitHandler(parkingService *parkingsvc.ParkingService, logger *zap.Logger) *ExitHandler {
	return &ExitHandler{
		parkingService: parkingService,
		logger:         logger,
	}
}

// GetDetails quotes the fee owed on an active ticket
func (h *ExitHandler) GetDetails(c *gin.Context) {
	ticketID, err := strconv.ParseInt(c.Param("ticket_id"), 10, 64)
	if err != nil || ticketID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid ticket ID", err)
		return
	}

	quote, err := h.parkingService.QuoteExit(c.Request.Context(), ticketID)
	if err != nil {
		response.FromError(c, "failed to quote exit", err)
		return
	}

	response.Success(c, http.StatusOK, "exit details", quote)
}

// ProcessPayment settles and closes an active ticket
func (h *ExitHandler) ProcessPayment(c *gin.Context) {
	var req parking.CloseTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	payment, err := h.parkingService.CloseTicket(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "payment rejected", err)
		return
	}

	response.Success(c, http.StatusOK, "Payment successful. Thank you!", payment)
}
