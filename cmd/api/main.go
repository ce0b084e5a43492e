package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/rental-portal/internal/api/http"
	"github.com/spec-kit/rental-portal/internal/api/http/handlers"
	"github.com/spec-kit/rental-portal/internal/cache"
	"github.com/spec-kit/rental-portal/internal/config"
	"github.com/spec-kit/rental-portal/internal/directory"
	"github.com/spec-kit/rental-portal/internal/domain"
	"github.com/spec-kit/rental-portal/internal/events"
	"github.com/spec-kit/rental-portal/internal/magiclink"
	"github.com/spec-kit/rental-portal/internal/mail"
	"github.com/spec-kit/rental-portal/internal/observability"
	"github.com/spec-kit/rental-portal/internal/service"
	"github.com/spec-kit/rental-portal/internal/session"
	"github.com/spec-kit/rental-portal/internal/store"
	"github.com/spec-kit/rental-portal/internal/token"
	"github.com/spec-kit/rental-portal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sessions store.SessionStore
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		sessions = store.NewRedis(cfg.Redis, logger)
	default:
		sessions = store.NewMemory()
	}
	defer sessions.Close()

	bookings := cache.New[*domain.Booking](cfg.Cache.TTL())

	directoryClient := directory.NewClient(cfg.Directory)
	verifier := directory.NewVerifier(directoryClient, bookings)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	tokens := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL(), sessions, directoryClient, logger)
	magicLinks := magiclink.NewService(sessions, directoryClient, dispatcher, logger)
	sessionService := session.NewService(session.Dependencies{
		Verifier:   verifier,
		Directory:  directoryClient,
		MagicLinks: magicLinks,
		Tokens:     tokens,
		Dispatcher: dispatcher,
	})

	mailer := mail.New(cfg.Mail, logger)
	notifications := service.NewNotificationService(dispatcher, mailer, logger, metrics, cfg.Mail)
	worker.StartNotificationWorker(notifications)
	worker.StartJanitor(ctx, cfg.Cache.CleanupInterval(), bookings, sessions, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, sessions, directoryClient)
	sessionHandler := handlers.NewSessionHandler(sessionService, validator.New())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Session:        sessionHandler,
		AuthMiddleware: token.NewMiddleware(tokens),
		Limiter:        httptransport.NewRateLimiter(cfg.RateLimit),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
