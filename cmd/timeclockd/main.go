package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"paydeck/timeclock/internal/blob"
	"paydeck/timeclock/internal/config"
	"paydeck/timeclock/internal/database"
	"paydeck/timeclock/internal/engine"
	"paydeck/timeclock/internal/handler"
	"paydeck/timeclock/internal/job"
	"paydeck/timeclock/internal/logger"
	"paydeck/timeclock/internal/mailer"
	"paydeck/timeclock/internal/repository"
	"paydeck/timeclock/internal/router"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/local.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting timeclock daemon",
		zap.String("env", cfg.Env),
		zap.String("config_path", *configPath),
	)

	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	sessions := repository.NewSessionRepository(db.DB)
	users := repository.NewUserRepository(db.DB)
	tasks := repository.NewTaskRepository(db.DB)

	sessionEngine := engine.NewSessionEngine(sessions, users, tasks, log.Logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	blobDir := filepath.Join(filepath.Dir(cfg.StoragePath), "blobs")
	blobs := blob.NewLocalStore(blobDir, "http://"+addr)

	smtpSender := mailer.NewSMTPSender(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
		cfg.SMTP.From,
	)

	dailyReport := job.NewDailyReport(
		sessions,
		users,
		smtpSender,
		cfg.Report.HourlyRate,
		cfg.Report.Currency,
		cfg.Report.SendHour,
		log.Logger,
	)
	dailyReport.Start()

	sessionHandler := handler.NewSessionHandler(sessionEngine, sessions, users, blobs, log.Logger)
	reportHandler := handler.NewReportHandler(sessions, dailyReport, cfg.Report.HourlyRate, log.Logger)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router.New(sessionHandler, reportHandler, blobDir, log.Logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}

	dailyReport.Stop()

	log.Info("Timeclock daemon stopped")
}
