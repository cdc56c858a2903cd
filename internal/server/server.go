package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/admission"
	"github.com/aman-churiwal/credit-gateway/internal/config"
	"github.com/aman-churiwal/credit-gateway/internal/handler"
	"github.com/aman-churiwal/credit-gateway/internal/healthcheck"
	"github.com/aman-churiwal/credit-gateway/internal/middleware"
	"github.com/aman-churiwal/credit-gateway/internal/notify"
	"github.com/aman-churiwal/credit-gateway/internal/ratelimit"
	"github.com/aman-churiwal/credit-gateway/internal/sequence"
	"github.com/aman-churiwal/credit-gateway/internal/service"
	"github.com/aman-churiwal/credit-gateway/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the collaborators built by main. Redis and Database are
// nil when no configured store needs them.
type Dependencies struct {
	Redis     *storage.RedisClient
	Database  *storage.Database
	Admitter  handler.Admitter
	Windows   *ratelimit.WindowStore
	Sequences sequence.Store
	Mailer    notify.Sender
	Relays    handler.RelayControl
}

type Server struct {
	router            *gin.Engine
	config            *config.Config
	logger            *zap.Logger
	deps              Dependencies
	health            *healthcheck.Checker
	authService       *service.AuthService
	submissionHandler *handler.SubmissionHandler
	adminHandler      *handler.AdminHandler
	healthHandler     *handler.HealthHandler
	httpServer        *http.Server
}

func New(cfg *config.Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}
	proxies, err := admission.ParseProxySet(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}

	health := healthcheck.NewChecker(2*time.Second, logger)
	if deps.Redis != nil {
		health.Register("redis", deps.Redis.Ping)
	}
	if deps.Database != nil {
		health.Register("database", deps.Database.Ping)
	}

	pricing := handler.Pricing{
		Terms:             cfg.Credit.Terms(),
		MarkupPercent:     cfg.Credit.Markup(),
		CardMarkupPercent: cfg.Credit.CardMarkup(),
	}

	authService := service.NewAuthService(
		cfg.Admin.Username,
		cfg.Admin.PasswordHash,
		cfg.Admin.JWTSecret,
		cfg.Admin.TokenTTL,
	)

	s := &Server{
		router:            router,
		config:            cfg,
		logger:            logger,
		deps:              deps,
		health:            health,
		authService:       authService,
		submissionHandler: handler.NewSubmissionHandler(deps.Admitter, deps.Sequences, pricing, deps.Mailer, proxies, cfg.Server.Debug, logger),
		adminHandler:      handler.NewAdminHandler(authService, deps.Sequences, deps.Relays, health, backends(cfg), logger),
		healthHandler:     handler.NewHealthHandler(health),
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	return s, nil
}

func backends(cfg *config.Config) map[string]string {
	return map[string]string{
		"rate_windows": cfg.Store.RateWindows,
		"sequences":    cfg.Store.Sequences,
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))

	// Storefront snippets post from the merchant's own domain
	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
		ExposeHeaders:   []string{"X-Jet-403-Reason", "Retry-After", middleware.RequestIDHeader},
		MaxAge:          24 * time.Hour,
	}))
}

func (s *Server) setupRoutes() {
	s.router.NoMethod(handler.MethodNotAllowed)

	s.router.POST("/", s.submissionHandler.Submit)
	s.router.POST("/api/submit", s.submissionHandler.Submit)

	s.router.GET("/health", s.healthHandler.Health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := s.router.Group("/admin")
	{
		loginLimiter := ratelimit.NewFixedWindow(s.deps.Windows, "admin_", 10, time.Minute)
		admin.POST("/login", middleware.RateLimit(loginLimiter, s.logger), s.adminHandler.Login)

		authed := admin.Group("", middleware.RequireAuth(s.authService))
		authed.GET("/status", s.adminHandler.Status)
		authed.GET("/sequences/:merchant", s.adminHandler.Sequence)
		authed.POST("/relays/:relay/reset", s.adminHandler.ResetRelay)
	}
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting credit gateway",
		zap.String("addr", addr),
		zap.String("environment", s.config.Server.Environment),
	)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
