package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/api"
	"github.com/Kamar-Folarin/brand-sync/internal/auth"
	"github.com/Kamar-Folarin/brand-sync/internal/config"
	"github.com/Kamar-Folarin/brand-sync/internal/db"
	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/notify"
	"github.com/Kamar-Folarin/brand-sync/internal/sources"
	"github.com/Kamar-Folarin/brand-sync/internal/workflow"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brands := sources.NewBrandPlatformClient(cfg.Sources, logger)
	ga4, err := sources.NewGA4Client(ctx, cfg.Sources, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize GA4 client: %v", err)
	}
	rankings := sources.NewAgencyAnalyticsClient(cfg.Sources, logger)
	logger.WithFields(logrus.Fields{
		"brand_platform":   brands.Configured(),
		"ga4":              ga4.Configured(),
		"agency_analytics": rankings.Configured(),
	}).Info("Sources configured")

	validator, err := auth.NewValidator(cfg.JWTSecret)
	if err != nil {
		logger.Fatalf("Failed to initialize token validator: %v", err)
	}

	hub := notify.NewHub(logger)
	engine := jobs.NewEngine(store, hub, cfg.Sync, logger)
	service := workflow.NewService(store, brands, ga4, rankings, hub, cfg.Sync, logger)

	handler := api.NewHandler(engine, service, store, logger)
	router := api.SetupRouter(handler, api.NewWebSocketHandler(hub, validator, logger), validator, logger)

	// WriteTimeout is left unset so websocket connections are not cut off
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Sync.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Sync engine shutdown incomplete: %v", err)
	}
	hub.Close()
	if err := store.Close(); err != nil {
		logger.Errorf("Failed to close store: %v", err)
	}
	logger.Info("Server exited properly")
}

func openStore(cfg *config.Config, logger *logrus.Logger) (db.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, jobs and synced data are lost on restart")
		return db.NewMemoryStore(), nil
	}

	store, err := db.NewPostgresStore(cfg.DBConnectionString)
	if err != nil {
		return nil, err
	}

	// Run migrations with retry logic
	if err := retry(3, 5*time.Second, store.Migrate); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// retry retries a function up to a certain number of attempts with a delay between attempts
func retry(attempts int, sleep time.Duration, fn func() error) error {
	if err := fn(); err != nil {
		if attempts--; attempts > 0 {
			time.Sleep(sleep)
			return retry(attempts, sleep, fn)
		}
		return err
	}
	return nil
}
