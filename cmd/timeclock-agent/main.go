package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paydeck/timeclock/internal/client"
	"paydeck/timeclock/internal/config"
	"paydeck/timeclock/internal/database"
	"paydeck/timeclock/internal/device"
	"paydeck/timeclock/internal/idle"
	"paydeck/timeclock/internal/logger"
	"paydeck/timeclock/internal/platform"
	"paydeck/timeclock/internal/queue"
	"paydeck/timeclock/internal/screenshot"

	"github.com/getlantern/systray"
	"go.uber.org/zap"
)

type agent struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	monitor   *idle.Monitor
	scheduler *screenshot.Scheduler
	processor *queue.Processor
	uploads   *queue.UploadQueue

	status *systray.MenuItem
}

func main() {
	configPath := flag.String("config", "config/agent.yaml", "Path to configuration file")
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

	if cfg.Agent.UserID == 0 {
		log.Fatal("agent.user_id must be configured")
	}

	log.Info("Starting timeclock agent",
		zap.String("env", cfg.Env),
		zap.Int64("user_id", cfg.Agent.UserID),
		zap.String("backend_url", cfg.Backend.BaseURL),
	)

	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	deviceManager := device.NewDeviceManager()
	deviceID, err := deviceManager.GetOrGenerateDeviceID("")
	if err != nil {
		log.Fatal("Failed to get device ID", zap.Error(err))
	}
	log.Info("Device identified", zap.String("device_id", deviceID))

	platformInstance, err := platform.NewPlatform()
	if err != nil {
		log.Fatal("Failed to initialize platform", zap.Error(err))
	}

	apiClient := client.NewAPIClient(
		cfg.Backend.BaseURL,
		cfg.Backend.APIKey,
		time.Duration(cfg.Backend.Timeout)*time.Second,
		log.Logger,
	)

	if err := apiClient.HealthCheck(); err != nil {
		log.Warn("Backend unreachable at startup, continuing anyway", zap.Error(err))
	}

	// The server-side per-user limit wins over the local default.
	autoStopMinutes := cfg.Tracking.DefaultAutoStopMinutes
	if user, err := apiClient.GetUserSettings(cfg.Agent.UserID); err != nil {
		log.Warn("Failed to fetch user settings, using default auto-stop limit",
			zap.Error(err),
			zap.Int("default_minutes", autoStopMinutes),
		)
	} else if user.AutoStopLimitMinutes > 0 {
		autoStopMinutes = user.AutoStopLimitMinutes
	}

	a := &agent{cfg: cfg, log: log, db: db}

	a.monitor = idle.NewMonitor(
		apiClient,
		platformInstance,
		a,
		cfg.Agent.UserID,
		time.Duration(autoStopMinutes)*time.Minute,
		time.Duration(cfg.Agent.IdlePollInterval)*time.Second,
		log.Logger,
	)
	if cfg.Agent.AwayThreshold > 0 {
		a.monitor.SetAwayThreshold(time.Duration(cfg.Agent.AwayThreshold) * time.Second)
	}

	a.uploads = queue.NewUploadQueue(db.DB, log.Logger)
	a.scheduler = screenshot.NewScheduler(
		apiClient,
		platformInstance,
		apiClient,
		apiClient,
		a.uploads,
		cfg.Agent.UserID,
		time.Duration(cfg.Agent.ScreenshotMinMinutes)*time.Minute,
		time.Duration(cfg.Agent.ScreenshotMaxMinutes)*time.Minute,
		log.Logger,
	)
	a.processor = queue.NewProcessor(
		a.uploads,
		apiClient,
		apiClient,
		time.Duration(cfg.Agent.QueueRetryInterval)*time.Second,
		log.Logger,
	)

	// Ctrl-C behaves like the tray's Quit item.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		systray.Quit()
	}()

	// Blocks until systray.Quit; onExit runs the shutdown path.
	systray.Run(a.onReady, a.onExit)
}

func (a *agent) onReady() {
	systray.SetTitle("Timeclock")
	systray.SetTooltip("Timeclock agent")

	a.status = systray.AddMenuItem("Status: idle", "Current tracking status")
	a.status.Disable()
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop the agent")

	a.monitor.Start()
	a.scheduler.Start()
	a.processor.Start()

	a.log.Info("Timeclock agent started")

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if a.monitor.Away() {
					a.status.SetTitle("Status: away")
				} else {
					a.status.SetTitle("Status: active")
				}
			case <-quitItem.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (a *agent) onExit() {
	a.log.Info("Shutting down timeclock agent...")

	a.monitor.Stop()
	a.scheduler.Stop()
	a.processor.Stop()

	if err := a.uploads.CleanupOldUploads(7 * 24 * time.Hour); err != nil {
		a.log.Error("Failed to cleanup old uploads", zap.Error(err))
	}

	if err := a.db.Close(); err != nil {
		a.log.Error("Failed to close database", zap.Error(err))
	}

	a.log.Info("Timeclock agent stopped")
}

// Notify surfaces events in the tray. Desktop toast notifications vary too
// much across platforms to rely on, so the menu doubles as the channel.
func (a *agent) Notify(title, message string) {
	if a.status != nil {
		a.status.SetTitle(title + ": " + message)
	}
	a.log.Info("User notification",
		zap.String("title", title),
		zap.String("message", message),
	)
}
