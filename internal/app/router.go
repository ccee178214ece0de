// internal/app/router.go
package app

import (
	"parking-service/internal/domain/auth"
	adminHandler "parking-service/internal/handlers/admin"
	authHandler "parking-service/internal/handlers/auth"
	entryHandler "parking-service/internal/handlers/entry"
	exitHandler "parking-service/internal/handlers/exit"
	wsHandler "parking-service/internal/handlers/websocket"
	"parking-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	EntryHandler   *entryHandler.EntryHandler
	ExitHandler    *exitHandler.ExitHandler
	AdminHandler   *adminHandler.AdminHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware

	// TerminalLimit throttles the public entry and exit kiosks.
	TerminalLimit gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health & Metrics ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== Live feed ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Operator auth ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.GET("/me", h.AuthHandler.GetMe)
	}

	// ==================== Entry terminal ====================
	entry := api.Group("/entry")
	if h.TerminalLimit != nil {
		entry.Use(h.TerminalLimit)
	}
	{
		entry.GET("/config", h.EntryHandler.GetConfig)
		entry.POST("/ticket", h.EntryHandler.CreateTicket)
	}

	// ==================== Exit terminal ====================
	exit := api.Group("/exit")
	if h.TerminalLimit != nil {
		exit.Use(h.TerminalLimit)
	}
	{
		exit.GET("/details/:ticket_id", h.ExitHandler.GetDetails)
		exit.POST("/payment", h.ExitHandler.ProcessPayment)
	}

	// ==================== Administration ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.WithRole(auth.RoleAdministrator)...)
	{
		admin.POST("/exit/assisted", h.AdminHandler.AssistedExit)

		admin.GET("/dashboard/summary", h.AdminHandler.DashboardSummary)
		admin.GET("/dashboard/trends", h.AdminHandler.DashboardTrends)
		admin.GET("/parking-lots/:lot_id/map", h.AdminHandler.LotMap)

		admin.GET("/tickets", h.AdminHandler.ListTickets)
		admin.GET("/tickets/:ticket_id", h.AdminHandler.TicketDetail)

		admin.GET("/reports/revenue", h.AdminHandler.RevenueReport)
		admin.GET("/reports/occupancy", h.AdminHandler.OccupancyReport)

		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
