// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"parking-service/internal/config"
	"parking-service/internal/db"
	"parking-service/internal/domain/auth"
	"parking-service/internal/domain/parking"
	adminHandler "parking-service/internal/handlers/admin"
	authHandler "parking-service/internal/handlers/auth"
	entryHandler "parking-service/internal/handlers/entry"
	exitHandler "parking-service/internal/handlers/exit"
	wsHandler "parking-service/internal/handlers/websocket"
	"parking-service/internal/middleware"
	"parking-service/internal/pkg/clock"
	"parking-service/internal/pkg/jwt"
	"parking-service/internal/pkg/metrics"
	"parking-service/internal/pkg/ratelimit"
	"parking-service/internal/pkg/session"
	"parking-service/internal/repository/memory"
	"parking-service/internal/repository/postgres"
	authUsecase "parking-service/internal/service/auth"
	"parking-service/internal/service/billing"
	parkingsvc "parking-service/internal/service/parking"
	"parking-service/internal/service/penalty"
	"parking-service/internal/service/registry"
	reportsvc "parking-service/internal/service/report"
	"parking-service/internal/websocket"
	wsHandlers "parking-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	http   *http.Server
	logger *zap.Logger

	pool    *pgxpool.Pool
	redis   *redis.Client
	stopHub context.CancelFunc
}

func NewServer(cfg config.AppConfig) (*Server, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Server{cfg: cfg, engine: gin.New(), logger: logger}, nil
}

// Logger is the process logger, shared with main for shutdown messages.
func (s *Server) Logger() *zap.Logger {
	return s.logger
}

// Build connects the backing services and wires every component.
func (s *Server) Build(ctx context.Context) error {
	// ----- Storage -----
	store, operators, err := s.openStore(ctx)
	if err != nil {
		return err
	}

	seed := &parking.SeedData{Penalties: penalty.SeedPenalties(penalty.DefaultLostTicket)}
	if s.cfg.SeedDemoData {
		seed = parkingsvc.DemoSeed()
	}
	if err := store.Seed(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}

	// ----- Engine collaborators -----
	penalties, err := store.ListPenalties(ctx)
	if err != nil {
		return fmt.Errorf("failed to load penalties: %w", err)
	}
	catalog := penalty.NewCatalog(penalties)
	fees := billing.NewCalculator(billing.DefaultRates())
	validator := registry.NewValidator(s.cfg.RegionCodes, s.cfg.VehicleNumberMinLen)
	clk := clock.System{}

	// ----- Redis & rate limiters -----
	loginLimiter, terminalLimiter := s.buildLimiters(ctx)

	// ----- JWT Manager -----
	jwtManager, err := s.buildJWT()
	if err != nil {
		return err
	}

	// ----- Services -----
	authService := authUsecase.NewAuthService(operators, jwtManager, loginLimiter, s.logger)
	if s.redis != nil {
		authService.SetBlacklist(session.NewRedisBlacklist(s.redis))
	}
	if err := s.ensureOperators(ctx, authService); err != nil {
		return err
	}

	hub := websocket.NewHub(authService, s.logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	s.stopHub = stopHub
	go hub.Run(hubCtx)

	parkingService := parkingsvc.NewParkingService(store, fees, catalog, validator, clk, hub, s.logger)
	parkingService.SetConflictRetries(s.cfg.StoreConflictRetries)
	parkingService.SetRequireFullAssistedPayment(s.cfg.AssistedExitRequireFullPayment)

	reportService := reportsvc.NewReportService(store, fees, clk, s.logger)
	hub.RegisterHandler(wsHandlers.NewOccupancyHandler(reportService))

	// ----- Handlers -----
	handlers := &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(authService, s.logger),
		EntryHandler:   entryHandler.NewEntryHandler(parkingService, s.logger),
		ExitHandler:    exitHandler.NewExitHandler(parkingService, s.logger),
		AdminHandler:   adminHandler.NewAdminHandler(parkingService, reportService, s.logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.AllowedOrigins, s.logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
		TerminalLimit:  middleware.RateLimit(terminalLimiter, s.logger),
	}

	// ----- Middlewares -----
	metrics.Register()
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins...),
	)

	SetupRouter(s.engine, s.logger, handlers)

	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	if s.http == nil {
		return errors.New("server not built")
	}

	s.logger.Info("server listening",
		zap.String("addr", s.cfg.HTTPAddr),
		zap.String("store", s.cfg.StoreDriver),
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains HTTP connections and releases the backing services.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	if s.stopHub != nil {
		s.stopHub()
	}
	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			s.logger.Warn("failed to close redis", zap.Error(cerr))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	_ = s.logger.Sync()
	return err
}

func (s *Server) openStore(ctx context.Context) (parking.Store, auth.OperatorRepository, error) {
	switch s.cfg.StoreDriver {
	case config.StoreDriverMemory:
		s.logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), memory.NewOperatorRepository(), nil

	case config.StoreDriverPostgres:
		pool, err := db.ConnectDB(ctx, db.PostgresConfig{URL: s.cfg.DatabaseURL, MaxConns: s.cfg.DBMaxConns})
		if err != nil {
			return nil, nil, err
		}
		s.pool = pool

		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		s.logger.Info("connected to PostgreSQL", zap.Int32("max_conns", s.cfg.DBMaxConns))

		isolation := pgx.ReadCommitted
		if s.cfg.DBIsolation == "serializable" {
			isolation = pgx.Serializable
		}
		store := postgres.NewStore(postgres.NewDB(pool, postgres.WithIsolation(isolation)), s.logger)
		return store, postgres.NewOperatorRepository(pool), nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", s.cfg.StoreDriver)
	}
}

// buildLimiters uses redis when configured and reachable, otherwise
// per-process counters.
func (s *Server) buildLimiters(ctx context.Context) (login, terminal ratelimit.Limiter) {
	const loginAttempts, loginWindow = 5, 15 * time.Minute

	if s.cfg.RedisAddr != "" {
		client, err := db.NewRedisClient(ctx, db.RedisConfig{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPass,
			PoolSize: 10,
		})
		if err == nil {
			s.redis = client
			s.logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))
			return ratelimit.NewRedisLimiter(client, "login", loginAttempts, loginWindow),
				ratelimit.NewRedisLimiter(client, "terminal", s.cfg.RateLimitPerMinute, time.Minute)
		}
		s.logger.Warn("redis unavailable, falling back to in-process rate limiting", zap.Error(err))
	}

	return ratelimit.NewMemoryLimiter(loginAttempts, loginWindow),
		ratelimit.NewMemoryLimiter(s.cfg.RateLimitPerMinute, time.Minute)
}

func (s *Server) buildJWT() (*jwt.Manager, error) {
	mgr, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err == nil {
		return mgr, nil
	}
	if !s.cfg.IsDevelopment() {
		return nil, fmt.Errorf("failed to load JWT manager: %w", err)
	}

	s.logger.Warn("JWT keys not found, signing with an ephemeral key", zap.Error(err))
	return jwt.Ephemeral(s.cfg.JWT)
}

// ensureOperators provisions the bootstrap administrator and attendant.
func (s *Server) ensureOperators(ctx context.Context, authService *authUsecase.AuthService) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	accounts := []struct {
		username, password, role string
	}{
		{s.cfg.AdminUsername, s.cfg.AdminPassword, auth.RoleAdministrator},
		{s.cfg.AttendantUsername, s.cfg.AttendantPassword, auth.RoleAttendant},
	}
	for _, a := range accounts {
		if a.username == "" {
			continue
		}
		if _, err := authService.EnsureOperator(ctx, a.username, a.password, a.role); err != nil {
			return fmt.Errorf("failed to provision operator: %w", err)
		}
	}
	return nil
}
