package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parking-service/internal/domain/auth"
	adminHandler "parking-service/internal/handlers/admin"
	authHandler "parking-service/internal/handlers/auth"
	entryHandler "parking-service/internal/handlers/entry"
	exitHandler "parking-service/internal/handlers/exit"
	wsHandler "parking-service/internal/handlers/websocket"
	"parking-service/internal/middleware"
	"parking-service/internal/pkg/clock"
	"parking-service/internal/pkg/jwt"
	"parking-service/internal/pkg/ratelimit"
	"parking-service/internal/repository/memory"
	authUsecase "parking-service/internal/service/auth"
	"parking-service/internal/service/billing"
	parkingsvc "parking-service/internal/service/parking"
	"parking-service/internal/service/penalty"
	"parking-service/internal/service/registry"
	reportsvc "parking-service/internal/service/report"
	"parking-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	clock  *clock.Manual
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	store := memory.New()
	if err := store.Seed(ctx, parkingsvc.DemoSeed()); err != nil {
		t.Fatal(err)
	}
	penalties, err := store.ListPenalties(ctx)
	if err != nil {
		t.Fatal(err)
	}

	clk := clock.NewManual(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	fees := billing.NewCalculator(billing.DefaultRates())

	mgr, err := jwt.Ephemeral(jwt.Config{Issuer: "parking-service", Audience: "parking-operators", TTL: time.Hour, KID: "test"})
	if err != nil {
		t.Fatal(err)
	}
	authService := authUsecase.NewAuthService(memory.NewOperatorRepository(), mgr, ratelimit.NewMemoryLimiter(100, time.Minute), logger)
	authService.SetHashCost(bcrypt.MinCost)
	if _, err := authService.EnsureOperator(ctx, "admin", "admin123", auth.RoleAdministrator); err != nil {
		t.Fatal(err)
	}
	if _, err := authService.EnsureOperator(ctx, "attendant1", "attendant123", auth.RoleAttendant); err != nil {
		t.Fatal(err)
	}

	hub := websocket.NewHub(authService, logger)
	parkingService := parkingsvc.NewParkingService(store, fees, penalty.NewCatalog(penalties),
		registry.NewValidator(registry.DefaultRegionCodes, 2), clk, hub, logger)
	reportService := reportsvc.NewReportService(store, fees, clk, logger)

	r := gin.New()
	SetupRouter(r, logger, &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(authService, logger),
		EntryHandler:   entryHandler.NewEntryHandler(parkingService, logger),
		ExitHandler:    exitHandler.NewExitHandler(parkingService, logger),
		AdminHandler:   adminHandler.NewAdminHandler(parkingService, reportService, logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, nil, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
		TerminalLimit:  middleware.RateLimit(ratelimit.NewMemoryLimiter(1000, time.Minute), logger),
	})

	return &testAPI{t: t, router: r, clock: clk}
}

func (a *testAPI) do(method, path string, body interface{}, token string) (int, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func (a *testAPI) login(username, password string) string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/auth/login", gin.H{"username": username, "password": password}, "")
	if code != http.StatusOK {
		a.t.Fatalf("login %s: %d %s", username, code, env.Error)
	}
	var resp auth.LoginResponse
	decode(a.t, env.Data, &resp)
	return resp.AccessToken
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func TestTerminalFlow(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodGet, "/api/v1/entry/config", nil, "")
	if code != http.StatusOK {
		t.Fatalf("config: %d", code)
	}
	var cfg struct {
		Rates map[string]struct {
			FirstHour         float64 `json:"first_hour"`
			LostTicketPenalty float64 `json:"lost_ticket_penalty"`
		} `json:"fee_structure_details"`
	}
	decode(t, env.Data, &cfg)
	if cfg.Rates["Compact"].FirstHour != 25 || cfg.Rates["Compact"].LostTicketPenalty != 250 {
		t.Errorf("compact tariff = %+v", cfg.Rates["Compact"])
	}

	entryCases := []struct {
		name string
		body gin.H
		want int
	}{
		{"issues ticket", gin.H{"vehicle_number": "dl01ab1234", "vehicle_type": "Compact"}, http.StatusCreated},
		{"duplicate active ticket", gin.H{"vehicle_number": "DL01AB1234", "vehicle_type": "Compact"}, http.StatusConflict},
		{"unknown region", gin.H{"vehicle_number": "ZZ01AB1234", "vehicle_type": "Compact"}, http.StatusBadRequest},
		{"unsupported type", gin.H{"vehicle_number": "MH01AB1234", "vehicle_type": "Bus"}, http.StatusBadRequest},
		{"missing field", gin.H{"vehicle_number": "MH01AB1234"}, http.StatusBadRequest},
	}

	var ticketID int64
	for _, tc := range entryCases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := api.do(http.MethodPost, "/api/v1/entry/ticket", tc.body, "")
			if code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", code, tc.want, env.Error)
			}
			if code == http.StatusCreated {
				var handle struct {
					TicketID   int64  `json:"ticket_id"`
					SpotNumber string `json:"spot_number"`
					QRCodeData string `json:"qr_code_data"`
				}
				decode(t, env.Data, &handle)
				if handle.SpotNumber != "A41" || handle.QRCodeData != fmt.Sprint(handle.TicketID) {
					t.Errorf("handle = %+v", handle)
				}
				ticketID = handle.TicketID
			}
		})
	}

	api.clock.Advance(90 * time.Minute)

	code, env = api.do(http.MethodGet, fmt.Sprintf("/api/v1/exit/details/%d", ticketID), nil, "")
	if code != http.StatusOK {
		t.Fatalf("details: %d %s", code, env.Error)
	}
	var quote struct {
		DurationMinutes int     `json:"duration_minutes"`
		CalculatedFee   float64 `json:"calculated_fee"`
	}
	decode(t, env.Data, &quote)
	if quote.DurationMinutes != 90 || quote.CalculatedFee != 37 {
		t.Errorf("quote = %+v, want 90 min / 37", quote)
	}

	code, env = api.do(http.MethodPost, "/api/v1/exit/payment", gin.H{"ticket_id": ticketID, "amount_paid": 20, "payment_method": "Cash"}, "")
	if code != http.StatusBadRequest {
		t.Fatalf("short payment: %d", code)
	}
	var short struct {
		Required float64 `json:"required"`
		Paid     float64 `json:"paid"`
	}
	decode(t, env.Data, &short)
	if short.Required != 37 || short.Paid != 20 {
		t.Errorf("insufficient payload = %+v", short)
	}

	code, env = api.do(http.MethodPost, "/api/v1/exit/payment", gin.H{"ticket_id": ticketID, "amount_paid": 37, "payment_method": "Cash"}, "")
	if code != http.StatusOK {
		t.Fatalf("payment: %d %s", code, env.Error)
	}

	if code, _ := api.do(http.MethodGet, fmt.Sprintf("/api/v1/exit/details/%d", ticketID), nil, ""); code != http.StatusNotFound {
		t.Errorf("details after close = %d, want 404", code)
	}
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	adminToken := api.login("admin", "admin123")
	attendantToken := api.login("attendant1", "attendant123")

	if code, _ := api.do(http.MethodPost, "/api/v1/entry/ticket", gin.H{"vehicle_number": "MH12CD5678", "vehicle_type": "Large"}, ""); code != http.StatusCreated {
		t.Fatalf("entry: %d", code)
	}
	api.clock.Advance(30 * time.Minute)

	assisted := gin.H{"vehicle_number": "MH12CD5678", "exit_reason": "LOST_TICKET", "payment_method": "Card", "amount_paid": 550}

	authCases := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"attendant", attendantToken, http.StatusForbidden},
	}
	for _, tc := range authCases {
		t.Run(tc.name, func(t *testing.T) {
			if code, _ := api.do(http.MethodPost, "/api/v1/admin/exit/assisted", assisted, tc.token); code != tc.want {
				t.Errorf("status = %d, want %d", code, tc.want)
			}
		})
	}

	code, env := api.do(http.MethodPost, "/api/v1/admin/exit/assisted", assisted, adminToken)
	if code != http.StatusOK {
		t.Fatalf("assisted exit: %d %s", code, env.Error)
	}
	var result struct {
		TotalCharge    float64  `json:"total_amount_charged"`
		BaseFee        float64  `json:"base_fee"`
		PenaltyApplied *float64 `json:"penalty_applied"`
		Payment        struct {
			ProcessedBy *int64 `json:"processed_by_user_id"`
		} `json:"payment"`
	}
	decode(t, env.Data, &result)
	if result.TotalCharge != 550 || result.BaseFee != 50 || result.PenaltyApplied == nil || *result.PenaltyApplied != 500 {
		t.Errorf("assisted result = %+v", result)
	}
	if result.Payment.ProcessedBy == nil {
		t.Error("processed_by_user_id not recorded")
	}

	code, env = api.do(http.MethodPost, "/api/v1/admin/exit/assisted", gin.H{
		"vehicle_number": "MH12CD5678", "exit_reason": "STOLEN", "payment_method": "Card",
	}, adminToken)
	if code != http.StatusBadRequest {
		t.Errorf("unknown reason: %d", code)
	}

	t.Run("dashboard summary", func(t *testing.T) {
		code, env := api.do(http.MethodGet, "/api/v1/admin/dashboard/summary", nil, adminToken)
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		var summary struct {
			TotalSpots    int `json:"total_spots"`
			OccupiedSpots int `json:"occupied_spots"`
		}
		decode(t, env.Data, &summary)
		if summary.TotalSpots != 260 || summary.OccupiedSpots != 0 {
			t.Errorf("summary = %+v", summary)
		}
	})

	t.Run("ticket list", func(t *testing.T) {
		code, env := api.do(http.MethodGet, "/api/v1/admin/tickets?status=paid", nil, adminToken)
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		var tickets []json.RawMessage
		decode(t, env.Data, &tickets)
		if len(tickets) != 1 {
			t.Errorf("paid tickets = %d, want 1", len(tickets))
		}

		if code, _ := api.do(http.MethodGet, "/api/v1/admin/tickets?sort_by=sideways", nil, adminToken); code != http.StatusBadRequest {
			t.Errorf("bad sort status = %d", code)
		}
	})

	t.Run("lot map", func(t *testing.T) {
		code, env := api.do(http.MethodGet, "/api/v1/admin/parking-lots/2/map", nil, adminToken)
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		var lotMap struct {
			LotName string            `json:"lot_name"`
			Spots   []json.RawMessage `json:"spots_array"`
		}
		decode(t, env.Data, &lotMap)
		if lotMap.LotName != "Overflow Lot B" || len(lotMap.Spots) != 60 {
			t.Errorf("lot map = %s with %d spots", lotMap.LotName, len(lotMap.Spots))
		}

		if code, _ := api.do(http.MethodGet, "/api/v1/admin/parking-lots/99/map", nil, adminToken); code != http.StatusNotFound {
			t.Errorf("missing lot status = %d", code)
		}
	})

	t.Run("revenue report", func(t *testing.T) {
		code, env := api.do(http.MethodGet, "/api/v1/admin/reports/revenue?start_date=2026-03-02&end_date=2026-03-02", nil, adminToken)
		if code != http.StatusOK {
			t.Fatalf("status = %d %s", code, env.Error)
		}
		var rep struct {
			TotalRevenue         float64 `json:"total_revenue"`
			RevenueFromPenalties float64 `json:"revenue_from_penalties"`
		}
		decode(t, env.Data, &rep)
		if rep.TotalRevenue != 550 || rep.RevenueFromPenalties != 500 {
			t.Errorf("revenue = %+v", rep)
		}

		if code, _ := api.do(http.MethodGet, "/api/v1/admin/reports/revenue?start_date=2026-03-02", nil, adminToken); code != http.StatusBadRequest {
			t.Errorf("missing end_date status = %d", code)
		}
	})

	t.Run("occupancy report", func(t *testing.T) {
		code, _ := api.do(http.MethodGet, "/api/v1/admin/reports/occupancy?start_date=2026-03-01T00:00:00Z&end_date=2026-03-03T00:00:00Z", nil, adminToken)
		if code != http.StatusOK {
			t.Errorf("status = %d", code)
		}
	})
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health = %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("attendant1", "attendant123")

	if code, _ := api.do(http.MethodGet, "/api/v1/auth/me", nil, token); code != http.StatusOK {
		t.Fatalf("me before logout = %d", code)
	}
	if code, env := api.do(http.MethodPost, "/api/v1/auth/logout", nil, token); code != http.StatusOK {
		t.Fatalf("logout = %d %s", code, env.Error)
	}
	if code, _ := api.do(http.MethodGet, "/api/v1/auth/me", nil, token); code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", code)
	}
}
