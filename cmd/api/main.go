package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/internal/http/handlers"
	appmw "github.com/nammaooru/civic-reports/internal/http/middleware"
	"github.com/nammaooru/civic-reports/internal/mailer"
	"github.com/nammaooru/civic-reports/internal/notify"
	"github.com/nammaooru/civic-reports/internal/repo/postgres"
	"github.com/nammaooru/civic-reports/internal/repo/redisrepo"
	"github.com/nammaooru/civic-reports/internal/service"
	"github.com/nammaooru/civic-reports/pkg/config"
	"github.com/nammaooru/civic-reports/pkg/database"
	"github.com/nammaooru/civic-reports/pkg/events"
	"github.com/nammaooru/civic-reports/pkg/logger"
	mw "github.com/nammaooru/civic-reports/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	publisher := newPublisher(cfg)
	defer publisher.Close()

	limiter := newRateLimiter(cfg)

	// Repositories
	userRepo := postgres.NewUserRepository(pool)
	otpRepo := postgres.NewOtpRepository(pool)
	reportRepo := postgres.NewReportRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)

	// Services
	otpService := service.NewOtpService(otpRepo, userRepo, cfg.Auth.OtpTTL)
	authService := service.NewAuthService(userRepo, outboxRepo, otpService, publisher, cfg)
	reportService := service.NewReportService(reportRepo, userRepo, outboxRepo, publisher)

	dispatcher := notify.NewDispatcher(outboxRepo, newMailer(cfg), publisher, cfg.Outbox)
	housekeeper := service.NewHousekeeper(otpRepo, cfg.Auth.OtpGCInterval)

	h := handlers.New(authService, reportService, cfg)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("civic-reports"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(appmw.OtpRateLimit(limiter, cfg.Auth.OtpRatePerHour)).Post("/otp/send", h.SendOtp)
		r.Post("/otp/verify", h.VerifyOtp)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Use(appmw.RequireAuth(cfg.Auth.JWTSecret))
		r.Post("/", h.CreateReport)
		r.Get("/", h.ListReports)
		r.Get("/{id}", h.GetReport)
		r.With(appmw.RequireRole(domain.RoleOfficial, domain.RoleModerator, domain.RoleAdmin)).
			Patch("/{id}/status", h.UpdateReportStatus)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(appmw.RequireAuth(cfg.Auth.JWTSecret))
		r.Use(appmw.RequireRole(domain.RoleAdmin))
		r.Patch("/users/{id}/role", h.UpdateUserRole)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	g.Go(func() error {
		return housekeeper.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Service error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

// newPublisher connects to NATS when configured; events are observability
// only, so a failed connection degrades to a no-op instead of aborting.
func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.NATS.URL == "" {
		return events.NopPublisher{}
	}
	pub, err := events.NewNATSPublisher(cfg.NATS.URL)
	if err != nil {
		logger.Warn("Failed to connect to NATS; events disabled", "error", err)
		return events.NopPublisher{}
	}
	return pub
}

func newRateLimiter(cfg *config.Config) redisrepo.RateLimiter {
	if cfg.Redis.URL == "" {
		return redisrepo.NopLimiter{}
	}
	client, err := redisrepo.NewClient(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Failed to connect to redis; rate limiting disabled", "error", err)
		return redisrepo.NopLimiter{}
	}
	return redisrepo.NewRateLimiter(client)
}

func newMailer(cfg *config.Config) mailer.Mailer {
	if cfg.Email.DevMode {
		logger.Info("Email dev mode enabled; messages will be logged, not sent")
		return mailer.NewDevMailer()
	}
	if cfg.Email.MailerSendKey != "" {
		m, err := mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
		if err == nil {
			return m
		}
		logger.Warn("MailerSend unavailable; falling back to SMTP", "error", err)
	}
	return mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
		cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
}
