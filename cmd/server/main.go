package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"admindash/internal/config"
	"admindash/internal/database"
	"admindash/internal/graph"
	"admindash/internal/handlers"
	"admindash/internal/logging"
	"admindash/internal/repository"
	"admindash/internal/security"
	"admindash/internal/service"
	"admindash/internal/session"
)

var _ session.Store = (*repository.SessionRepository)(nil)

func main() {
	// Load configuration
	cfg := config.Load()

	format := cfg.LogFormat
	if format == "" && cfg.IsProduction() {
		format = "json"
	}
	log := logging.New(os.Stdout, format, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	startup := handlers.NewStartupStatus(handlers.StepDatabase, handlers.StepMigrations, handlers.StepServices, handlers.StepReady)

	// Initialize database with config (supports sqlite, postgres, mysql)
	startup.SetCurrentStep(handlers.StepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	startup.CompleteStep(handlers.StepDatabase)
	log.Info(ctx, "database connection established", "type", cfg.DatabaseType)

	// Run migrations
	startup.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(ctx, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	startup.CompleteStep(handlers.StepMigrations)
	log.Info(ctx, "migrations completed successfully")

	startup.SetCurrentStep(handlers.StepServices)
	var redisClient *redis.Client
	if cfg.SessionStore == "redis" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	userRepo := repository.NewUserRepository(db)
	sessions := newSessionStore(cfg, db, redisClient)
	log.Info(ctx, "session store selected", "store", cfg.SessionStore)

	loginLimiter, stopLogin := newLimiter(redisClient, "limit:login:", cfg.LoginAttemptLimit, cfg.LoginAttemptWindow)
	defer stopLogin()
	requestLimiter, stopRequests := newLimiter(redisClient, "limit:ip:", cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer stopRequests()

	emailService, err := service.NewEmailService(ctx, service.EmailConfig{
		Region:     cfg.AWSRegion,
		FromEmail:  cfg.SESFromEmail,
		FromName:   cfg.SESFromName,
		AppBaseURL: cfg.AppURL,
		LogSecrets: !cfg.IsProduction(),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	authService := service.NewAuthService(userRepo, sessions, emailService, log, service.AuthOptions{
		SessionDuration:        cfg.SessionDuration,
		AllowAdminRegistration: cfg.AllowAdminRegistration,
		Limiter:                loginLimiter,
	})
	userService := service.NewUserService(userRepo, sessions, nil, log)

	cookies, err := security.NewSessionCookies(handlers.SessionCookieName, cfg.SessionSecret, cfg.IsProduction())
	if err != nil {
		return err
	}
	if cfg.SessionSecret == "" {
		log.Warn(ctx, "SESSION_SECRET not set, sessions will not survive a restart")
	}

	graphHandler, err := graph.NewHandler(authService, userService, cookies, log)
	if err != nil {
		return fmt.Errorf("failed to build graphql schema: %w", err)
	}
	startup.CompleteStep(handlers.StepServices)

	handler := handlers.NewRouter(handlers.RouterConfig{
		Auth:       handlers.NewAuthHandler(authService, cookies, log),
		Users:      handlers.NewUserHandler(userService, log),
		Middleware: handlers.NewMiddleware(authService, cookies, requestLimiter, log).TrustProxy(cfg.TrustProxy),
		GraphQL:    graphHandler,
		Startup:    startup,
		StaticDir:  cfg.StaticFilesPath,
		Log:        log,
	})

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background session cleanup
	stopCleanup := make(chan struct{})
	go cleanupExpiredSessions(authService, log, stopCleanup)
	defer close(stopCleanup)

	serverErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	startup.MarkReady()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info(ctx, "server shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newSessionStore(cfg *config.Config, db *database.DB, client *redis.Client) session.Store {
	switch cfg.SessionStore {
	case "memory":
		return session.NewMemoryStore()
	case "redis":
		return session.NewRedisStore(client, "admindash:")
	default:
		return repository.NewSessionRepository(db)
	}
}

// newLimiter picks the limiter backend. A zero rate disables limiting.
func newLimiter(client *redis.Client, prefix string, rate int, window time.Duration) (security.AttemptLimiter, func()) {
	switch {
	case rate <= 0:
		return security.NoopLimiter{}, func() {}
	case client != nil:
		return security.NewRedisLimiter(client, prefix, rate, window), func() {}
	default:
		rl := security.NewRateLimiter(rate, window)
		return rl, rl.Stop
	}
}

// cleanupExpiredSessions periodically removes expired sessions
func cleanupExpiredSessions(authService *service.AuthService, log logging.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := authService.CleanupExpiredSessions(ctx)
			cancel()
			if err != nil {
				log.Error(ctx, "error cleaning up expired sessions", "error", err)
				continue
			}
			log.Info(ctx, "expired sessions cleaned up", "removed", n)
		}
	}
}
