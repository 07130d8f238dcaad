package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"donation/internal/app"
	"donation/internal/config"
	"donation/internal/handler"
	internalRedis "donation/internal/redis"
	"donation/internal/repository"
	"donation/internal/repository/memory"
	"donation/internal/repository/postgres"
	"donation/internal/service"
)

func main() {
	// Load configuration. Missing credentials are fatal.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
			nrApp = nil
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	var db *sql.DB
	if cfg.Checkout.SessionStore == config.StorePostgres {
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to PostgreSQL")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Connected to Redis")
	}

	server, err := wireServer(db, redisClient, nrApp, cfg)
	if err != nil {
		log.Fatalf("failed to wire server: %v", err)
	}

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s (gateway environment=%s session_store=%s lock_backend=%s)",
			cfg.Server.Port, cfg.Gateway.Environment, cfg.Checkout.SessionStore, cfg.Checkout.LockBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, error) {
	gatewayClient, err := app.NewGatewayClient(cfg.Gateway)
	if err != nil {
		return nil, err
	}

	// Select session store.
	var sessions repository.SessionRepository
	switch cfg.Checkout.SessionStore {
	case config.StoreRedis:
		sessions = internalRedis.NewSessionStore(redisClient, cfg.Checkout.SessionTTL)
	case config.StorePostgres:
		sessions = postgres.NewSessionRepository(db)
	default:
		sessions = memory.NewSessionRepository()
	}

	// Select order locker.
	var locker service.OrderLocker = service.NewLocalLocker()
	if cfg.Checkout.LockBackend == config.LockRedis {
		locker = internalRedis.NewLockStore(redisClient, cfg.Checkout.LockTTL)
	}

	// Initialize services.
	validator := service.NewAmountValidator(cfg.Checkout.AmountCeiling)
	reconciler := service.NewReconciler(sessions, gatewayClient, locker, cfg.Gateway.VerifyReceipts)
	checkoutService := service.NewCheckoutService(sessions, gatewayClient, locker, validator, reconciler)

	// Initialize handlers.
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, reconciler)
	healthHandler := handler.NewHealthHandler(cfg.Gateway, cfg.Checkout)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		CheckoutHandler: checkoutHandler,
		HealthHandler:   healthHandler,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
