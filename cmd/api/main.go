package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/voice-membership/internal/auth"
	"github.com/BradenHooton/voice-membership/internal/background"
	"github.com/BradenHooton/voice-membership/internal/config"
	"github.com/BradenHooton/voice-membership/internal/database"
	"github.com/BradenHooton/voice-membership/internal/events"
	"github.com/BradenHooton/voice-membership/internal/handlers"
	middlewareCustom "github.com/BradenHooton/voice-membership/internal/middleware"
	"github.com/BradenHooton/voice-membership/internal/repositories"
	"github.com/BradenHooton/voice-membership/internal/routes"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
	pkglogger "github.com/BradenHooton/voice-membership/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := db.Migrate(startupCtx); err != nil {
		startupCancel()
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	childRepo := repositories.NewChildRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	cartRepo := repositories.NewCartRepository(db)
	registrationRepo := repositories.NewRegistrationRepository(db)
	sessionRepo := repositories.NewRegistrationSessionRepository(db, cfg.Registration.SessionTTL)
	resetRepo := repositories.NewPasswordResetRepository(db)
	revokeRepo := repositories.NewTokenRevocationRepository(db)

	// Outbound integrations
	publisher := newPublisher(cfg.Events, logger)
	defer publisher.Close()

	mailer := newMailer(startupCtx, cfg.Email, logger)

	// Initialize token manager with per-user TokenKey signing
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
		userRepo,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   300 * time.Millisecond,
		RandomDelay: 200 * time.Millisecond,
	})

	// Initialize services
	lockoutService := services.NewLockoutService(userRepo, services.LockoutConfig{
		MaxFailedAttempts: cfg.Lockout.MaxFailedAttempts,
		Duration:          cfg.Lockout.Duration,
	}, publisher, logger, auditLogger)
	authService := services.NewAuthService(userRepo, revokeRepo, lockoutService, tokenManager, timingDelay, logger, auditLogger)
	membershipService := services.NewMembershipService(membershipRepo, userRepo, cartRepo, mailer, publisher, logger, auditLogger)
	registrationService := services.NewRegistrationService(sessionRepo, registrationRepo, userRepo, membershipService, authService, publisher, logger, auditLogger)
	profileService := services.NewProfileService(userRepo, childRepo, membershipService, logger, auditLogger)
	passwordResetService := services.NewPasswordResetService(resetRepo, userRepo, mailer, cfg.PasswordReset.TokenTTL, logger, auditLogger)
	adminService := services.NewAdminService(userRepo, childRepo, membershipService, lockoutService, logger)
	landingService := services.NewLandingService(membershipRepo, membershipService, logger)

	// Seed catalog and bootstrap the first admin
	if err := landingService.Initialize(startupCtx); err != nil {
		logger.Error("failed to seed landing page content", slog.Any("error", err))
	}
	if err := services.EnsureAdminUser(startupCtx, userRepo, cfg.Admin.Email, cfg.Admin.Password, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	startupCancel()

	// Initialize handlers
	cookies := auth.CookieConfig{Secure: cfg.Auth.SecureCookies}
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, tokenManager, cookies, ipConfig, logger),
		Registration: handlers.NewRegistrationHandler(registrationService, tokenManager, cookies, cfg.Registration.SessionTTL, logger),
		Profile:      handlers.NewProfileHandler(profileService, logger),
		Membership:   handlers.NewMembershipHandler(membershipService, logger),
		Password:     handlers.NewPasswordHandler(passwordResetService, cfg.Server.BaseURL, logger),
		Admin:        handlers.NewAdminHandler(adminService, logger),
		Landing:      handlers.NewLandingHandler(landingService, logger),
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, h, routes.Security{
		TokenManager: tokenManager,
		Revocations:  revokeRepo,
		Users:        userRepo,
		Cookies:      cookies,
		IPConfig:     ipConfig,
		Logger:       logger,
	})

	router.Handle("/metrics", promhttp.Handler())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		stats := db.Stats()
		pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"pool": map[string]int32{
				"total": stats.TotalConns(),
				"idle":  stats.IdleConns(),
			},
		})
	})

	// Start cleanup jobs
	cleanupManager, err := background.NewCleanupManager(cfg.Scheduler.CleanupSpec, []background.CleanupJob{
		{Name: "password_reset_tokens", Purger: resetRepo},
		{Name: "registration_sessions", Purger: sessionRepo},
		{Name: "revoked_tokens", Purger: revokeRepo},
	}, logger)
	if err != nil {
		logger.Error("failed to schedule cleanup", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupManager.Start()

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newPublisher connects to the broker when AMQP_URL is set. A broker that
// is down at startup degrades to logging events instead of failing boot.
func newPublisher(cfg config.EventsConfig, logger *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NoopPublisher{Logger: logger}
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		logger.Warn("event broker unavailable, events will not be published", slog.Any("error", err))
		return events.NoopPublisher{Logger: logger}
	}
	return publisher
}

func newMailer(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) services.Mailer {
	if !cfg.Enabled {
		return services.LogMailer{Logger: logger}
	}

	mailer, err := services.NewSESMailer(ctx, cfg.AWSRegion, cfg.FromAddress, logger)
	if err != nil {
		logger.Error("failed to initialize email service, falling back to log mailer", slog.Any("error", err))
		return services.LogMailer{Logger: logger}
	}
	return mailer
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
