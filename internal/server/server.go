// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects storage, services, handlers,
// middleware and routes, and owns every long-lived resource:
//   - the store (SQLite or MongoDB)
//   - the WebSocket hub and its presence registry
//   - the cron scheduler
//   - the optional Redis client, Kafka writer and Docker sandbox
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config and builds the logger, then calls server.New, which
// creates:
//
//	store → services (auth, posts, notifications, admin) → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/captcha"
	"github.com/sakif/codeshare/internal/config"
	"github.com/sakif/codeshare/internal/events"
	"github.com/sakif/codeshare/internal/executor"
	"github.com/sakif/codeshare/internal/executor/docker"
	"github.com/sakif/codeshare/internal/otp"
	"github.com/sakif/codeshare/internal/realtime"
	"github.com/sakif/codeshare/internal/repository"
	"github.com/sakif/codeshare/internal/scheduler"
	"github.com/sakif/codeshare/internal/service"
	"github.com/sakif/codeshare/internal/sysinfo"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// Everything the Server opens it also closes, in Close. Start calls Close
// after the HTTP listener has drained, so in-flight requests never see a
// closed database.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	router *chi.Mux

	store     repository.Store
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	otp       *otp.Manager
	redis     *redis.Client
	publisher events.Publisher
	sandbox   *docker.Executor
	registry  *realtime.Registry
	hub       *realtime.Hub
	sched     *scheduler.Scheduler

	auth          *service.AuthService
	posts         *service.PostService
	notifications *service.NotificationService
	admin         *service.AdminService

	stopHub context.CancelFunc
}

// New builds the whole application from cfg. It connects to every
// configured backend, seeds the staff accounts when asked to, and starts
// the WebSocket hub. Call Start to serve, or Close to release everything.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *Server, err error) {
	s := &Server{cfg: cfg, logger: logger, router: chi.NewRouter()}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	// === STORAGE ===
	if s.store, err = OpenStore(ctx, cfg.Database); err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}

	// === AUTH PRIMITIVES ===
	if s.tokens, err = auth.NewTokenService(cfg.JWTSecret); err != nil {
		return nil, err
	}
	s.passwords = auth.NewPasswordService()

	otpStore, redisClient, err := newOTPStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	s.redis = redisClient
	s.otp = otp.NewManager(otpStore)

	// === OPTIONAL BACKENDS ===
	s.publisher = newPublisher(cfg.Kafka)
	s.sandbox = newSandbox(ctx, cfg.SandboxEnabled, logger)
	var exec executor.Executor
	if s.sandbox != nil {
		exec = s.sandbox
	}
	providers := oauthProviders(cfg)

	// === REAL-TIME ===
	s.registry = realtime.NewRegistry()
	s.hub = realtime.NewHub(logger.With().Str("component", "hub").Logger())
	s.hub.SetListener(realtime.NewPresence(s.registry, s.hub, logger))
	hubCtx, stopHub := context.WithCancel(context.Background())
	s.stopHub = stopHub
	go s.hub.Run(hubCtx)

	// === SERVICES ===
	s.auth = service.NewAuthService(service.AuthDeps{
		Users:     s.store,
		Posts:     s.store,
		Tokens:    s.tokens,
		Passwords: s.passwords,
		OTP:       s.otp,
		Mailer:    newMailer(cfg, logger),
		Uploader:  newUploader(cfg.Cloudinary, logger),
		Logger:    logger,
	})
	s.posts = service.NewPostService(s.store, s.store, exec, logger)
	s.notifications = service.NewNotificationService(
		s.store, s.store,
		realtime.NewDispatcher(s.registry, s.hub, logger),
		s.publisher,
		logger,
	)
	settings := service.DefaultSettings(cfg.Captcha.Enabled(), cfg.Email.Enabled(), service.Features{
		SocialLogin:    true,
		ImageUploads:   cfg.Cloudinary.Enabled(),
		CodeExecution:  exec != nil,
		EventStreaming: len(cfg.Kafka.Brokers) > 0,
	})
	probe := sysinfo.NewCollector(s.registry.Len)
	s.admin = service.NewAdminService(s.store, s.store, s.store, probe, settings, logger)

	// === STAFF ACCOUNTS ===
	if cfg.Seed.OnStartup {
		seeder := service.NewSeeder(s.store, s.passwords, logger)
		if err := SeedStaff(ctx, seeder, StaffAccounts(cfg.Seed), logger); err != nil {
			// A bad seed config should not keep the site down.
			logger.Error().Err(err).Msg("seeding staff accounts")
		}
	}

	// === BACKGROUND JOBS ===
	s.sched = scheduler.New(logger)
	if err := s.sched.Add("otp-purge", scheduler.OTPPurgeSpec, scheduler.PurgeOTPs(s.otp)); err != nil {
		return nil, err
	}
	retention := time.Duration(cfg.NotificationRetentionDays) * 24 * time.Hour
	prune := scheduler.PruneNotifications(s.store, retention, func() time.Time { return time.Now().UTC() })
	if err := s.sched.Add("notification-prune", scheduler.NotificationPruneSpec, prune); err != nil {
		return nil, err
	}

	verifier := captcha.New(cfg.Captcha.RecaptchaSecret, cfg.Captcha.HCaptchaSecret)
	if !cfg.Captcha.Enabled() {
		logger.Warn().Msg("no captcha secret configured, signup and login are not captcha-protected")
	}
	s.setupRoutes(verifier, providers)

	return s, nil
}

// SeedStaff creates or promotes each account. It stops at the first error.
func SeedStaff(ctx context.Context, seeder *service.Seeder, accounts []service.StaffAccount, logger zerolog.Logger) error {
	for _, acct := range accounts {
		outcome, err := seeder.EnsureStaff(ctx, acct)
		if err != nil {
			return fmt.Errorf("seeding %s %s: %w", acct.Role, acct.Email, err)
		}
		logger.Info().
			Str("email", acct.Email).
			Str("role", string(acct.Role)).
			Str("outcome", string(outcome)).
			Msg("staff account ready")
	}
	return nil
}

// Handler returns the root HTTP handler. Tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the scheduler and the hub, then close the backends
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The sandbox may take a while; WebSocket pumps set their own deadlines.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	s.sched.Start()
	go func() {
		s.logger.Info().
			Int("port", s.cfg.Port).
			Str("env", s.cfg.Env).
			Str("database", s.cfg.Database.Driver).
			Str("clientUrl", s.cfg.ClientURL).
			Msg("server starting")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.sched.Stop(ctx)
		s.logger.Info().Msg("server stopped gracefully")
	}

	return nil
}

// Close releases every resource New acquired. It is safe to call on a
// partially built Server.
func (s *Server) Close() error {
	if s.stopHub != nil {
		s.stopHub()
	}

	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.sandbox != nil {
		errs = append(errs, s.sandbox.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
