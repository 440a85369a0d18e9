package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	grpcapi "voluntia-backend/internal/api/grpc"
	httpapi "voluntia-backend/internal/api/http"
	"voluntia-backend/internal/config"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/metrics"
	"voluntia-backend/internal/migration"
	"voluntia-backend/internal/repository/postgres"
	"voluntia-backend/internal/security"
	"voluntia-backend/internal/seed"
	"voluntia-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Voluntia backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "http", cfg.GetServerAddress(), "grpc", cfg.GetGRPCAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User, "lock_timeout", cfg.LockTimeout())
	logger.Info("Email configuration", "enabled", cfg.Email.Enabled, "provider", cfg.Email.Provider, "from", cfg.Email.FromAddress, "workers", cfg.Email.Workers)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := migration.Run(db); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Repositories
	store := postgres.NewStore(db, cfg.LockTimeout())
	repos := store.Repositories()

	// Initialize Security
	hasher := security.NewPasswordHasher(cfg.Workflow.BcryptCost)
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.AccessTokenTTL())
	issuer := security.NewCredentialIssuer(hasher, cfg.Workflow.TempPasswordLength)

	if cfg.Seed.Enabled {
		if err := seed.NewSeeder(store, hasher, cfg.Seed).Run(ctx); err != nil {
			logger.Error("Failed to seed reference data", "error", err)
			log.Fatalf("Failed to seed reference data: %v", err)
		}
	}

	// Initialize Email Service
	if !cfg.Email.Enabled {
		logger.Warn("Email delivery disabled; temporary passwords are only returned to staff")
	}
	sender := service.NewEmailSender(cfg.Email)
	emailQueue := service.NewEmailQueue(sender, cfg.Email.Workers, cfg.Email.QueueSize, cfg.Email.MaxRetries)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	emailQueue.Start(queueCtx)
	mailer := service.NewMailer(emailQueue, cfg.Email.LoginURL)

	// Initialize Services
	appMetrics := metrics.New()
	workflowSvc := service.NewWorkflowService(store, repos, issuer, mailer, appMetrics)
	intakeSvc := service.NewIntakeService(store, repos.Users)
	authSvc := service.NewAuthService(repos.Users, hasher, tokenManager)
	userSvc := service.NewUserService(repos.Users)

	monitor := grpcapi.NewHealthMonitor(db, 10*time.Second)
	go monitor.Run(ctx)

	// Set up HTTP server
	httpServer := &http.Server{
		Addr: cfg.GetServerAddress(),
		Handler: httpapi.NewRouter(httpapi.RouterDeps{
			Intake:         intakeSvc,
			Workflow:       workflowSvc,
			Auth:           authSvc,
			Users:          userSvc,
			Tokens:         tokenManager,
			Health:         monitor,
			Metrics:        appMetrics,
			MetricsHandler: appMetrics.Handler(),
		}),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Set up gRPC health server
	grpcServer := grpcapi.NewServer(monitor)
	if addr := cfg.GetGRPCAddress(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", addr)
			log.Fatalf("Failed to listen: %v", err)
		}
		go func() {
			logger.Info("gRPC health server listening", "address", addr)
			if err := grpcServer.Serve(lis); err != nil {
				serverErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		logger.Error("Server error", "error", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()

	// Give queued welcome emails a moment to drain before the workers stop.
	drainUntil := time.Now().Add(5 * time.Second)
	for emailQueue.Pending() > 0 && time.Now().Before(drainUntil) {
		time.Sleep(100 * time.Millisecond)
	}
	stopQueue()
	emailQueue.Wait()
	logger.Info("Voluntia backend stopped")
}
