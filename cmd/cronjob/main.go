package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"voluntia-backend/internal/config"
	"voluntia-backend/internal/jobs"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/metrics"
	"voluntia-backend/internal/repository/postgres"
	"voluntia-backend/internal/scheduler"
	"voluntia-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit ('pending-digest', 'call-reminders' or 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Voluntia cronjob runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(5)

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db, cfg.LockTimeout())

	// Initialize Email Service
	emailQueue := service.NewEmailQueue(service.NewEmailSender(cfg.Email), cfg.Email.Workers, cfg.Email.QueueSize, cfg.Email.MaxRetries)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	emailQueue.Start(queueCtx)
	shutdownQueue := func() {
		drainUntil := time.Now().Add(30 * time.Second)
		for emailQueue.Pending() > 0 && time.Now().Before(drainUntil) {
			time.Sleep(100 * time.Millisecond)
		}
		stopQueue()
		emailQueue.Wait()
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store.Repositories(), service.NewMailer(emailQueue, cfg.Email.LoginURL), metrics.New(), cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		err := runJobOnce(jobRunner, *runOnce)
		shutdownQueue()
		if err != nil {
			logger.Error("Job execution failed", "job", *runOnce, "error", err)
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	shutdownQueue()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) error {
	switch jobName {
	case "pending-digest":
		return jobRunner.SendPendingApplicationsDigest()
	case "call-reminders":
		return jobRunner.SendUpcomingCallReminders()
	case "all":
		return jobRunner.RunAll()
	default:
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - pending-digest\n")
		fmt.Printf("  - call-reminders\n")
		fmt.Printf("  - all\n")
		return fmt.Errorf("unknown job name %q", jobName)
	}
}
