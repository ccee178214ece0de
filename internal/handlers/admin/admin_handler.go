// internal/handlers/admin/admin_handler.go
package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"parking-service/internal/domain/parking"
	"parking-service/internal/domain/report"
	"parking-service/internal/middleware"
	"parking-service/internal/pkg/response"
	parkingsvc "parking-service/internal/service/parking"
	reportsvc "parking-service/internal/service/report"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	parkingService *parkingsvc.ParkingService
	reportService  *reportsvc.ReportService
	logger         *zap.Logger
}

func NewAdminHandler(parkingService *parkingsvc.ParkingService, reportService *reportsvc.ReportService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		parkingService: parkingService,
		reportService:  reportService,
		logger:         logger,
	}
}

// ========== Exceptions ==========

// AssistedExit resolves a lost-ticket or unrecorded exit on behalf of a driver
func (h *AdminHandler) AssistedExit(c *gin.Context) {
	var req parking.AssistedExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	req.OperatorID = middleware.MustGetOperatorID(c)

	result, err := h.parkingService.ResolveAssistedExit(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "assisted exit failed", err)
		return
	}

	response.Success(c, http.StatusOK, "Assisted exit processed successfully.", result)
}

// ========== Dashboard ==========

func (h *AdminHandler) DashboardSummary(c *gin.Context) {
	summary, err := h.reportService.DashboardSummary(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to load dashboard summary", err)
		return
	}
	response.Success(c, http.StatusOK, "dashboard summary", summary)
}

func (h *AdminHandler) DashboardTrends(c *gin.Context) {
	trends, err := h.reportService.DashboardTrends(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to load dashboard trends", err)
		return
	}
	response.Success(c, http.StatusOK, "dashboard trends", trends)
}

// LotMap returns every spot of a lot with its status
func (h *AdminHandler) LotMap(c *gin.Context) {
	lotID, err := strconv.ParseInt(c.Param("lot_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid lot ID", err)
		return
	}

	lotMap, err := h.reportService.LotMap(c.Request.Context(), lotID)
	if err != nil {
		response.FromError(c, "failed to load lot map", err)
		return
	}
	response.Success(c, http.StatusOK, "lot map", lotMap)
}

// ========== Tickets ==========

func (h *AdminHandler) ListTickets(c *gin.Context) {
	var q report.TicketQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query", err)
		return
	}

	tickets, err := h.reportService.ListTickets(c.Request.Context(), &q)
	if err != nil {
		response.FromError(c, "failed to list tickets", err)
		return
	}
	response.Success(c, http.StatusOK, "tickets retrieved", tickets)
}

func (h *AdminHandler) TicketDetail(c *gin.Context) {
	ticketID, err := strconv.ParseInt(c.Param("ticket_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid ticket ID", err)
		return
	}

	detail, err := h.reportService.TicketDetail(c.Request.Context(), ticketID)
	if err != nil {
		response.FromError(c, "failed to load ticket", err)
		return
	}
	response.Success(c, http.StatusOK, "ticket retrieved", detail)
}

// ========== Reports ==========

func (h *AdminHandler) RevenueReport(c *gin.Context) {
	from, to, err := parsePeriod(c)
	if err != nil {
		response.ValidationError(c, "invalid report period", err)
		return
	}

	rep, err := h.reportService.RevenueReport(c.Request.Context(), from, to)
	if err != nil {
		response.FromError(c, "failed to build revenue report", err)
		return
	}
	response.Success(c, http.StatusOK, "revenue report", rep)
}

func (h *AdminHandler) OccupancyReport(c *gin.Context) {
	from, to, err := parsePeriod(c)
	if err != nil {
		response.ValidationError(c, "invalid report period", err)
		return
	}

	rep, err := h.reportService.OccupancyReport(c.Request.Context(), from, to)
	if err != nil {
		response.FromError(c, "failed to build occupancy report", err)
		return
	}
	response.Success(c, http.StatusOK, "occupancy report", rep)
}

const dateLayout = "2006-01-02"

// parsePeriod reads start_date and end_date as RFC 3339 timestamps or
// plain dates. A plain end date covers the whole day.
func parsePeriod(c *gin.Context) (time.Time, time.Time, error) {
	rawFrom, rawTo := c.Query("start_date"), c.Query("end_date")
	if rawFrom == "" || rawTo == "" {
		return time.Time{}, time.Time{}, errors.New("start_date and end_date are required")
	}

	from, _, err := parseBound(rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	to, dateOnly, err := parseBound(rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	if dateOnly {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("end_date is before start_date")
	}
	return from, to, nil
}

func parseBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected %s or RFC 3339, got %q", dateLayout, s)
	}
	return t, true, nil
}
