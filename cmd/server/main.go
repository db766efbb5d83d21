package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/database"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/metrics"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/middleware"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/routes"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}

	storage, err := services.NewStorage(context.Background(), cfg.Storage)
	if err != nil {
		logrus.WithError(err).Fatal("storage init failed")
	}

	if cfg.MetricsEnabled {
		metrics.MustRegister()
	}

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	sweeper := services.NewOverdueSweeper(db, services.NewSweepLogger(cfg.Sweep.LogPath), telegram)

	app := fiber.New(fiber.Config{
		AppName:      "AI Meishi Backend",
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		Output: logrus.StandardLogger().Writer(),
	}))
	if cfg.MetricsEnabled {
		app.Use(middleware.WithMetrics())
	}

	routes.Register(app, db, cfg, routes.Dependencies{
		Mailer:   services.NewSMTPMailer(cfg.SMTP),
		Notifier: telegram,
		Storage:  storage,
		Provider: services.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeAPIBase),
		Sweeper:  sweeper,
	})

	var scheduler *services.SweepScheduler
	if cfg.Sweep.Enabled {
		scheduler = services.NewSweepScheduler(sweeper, cfg.Sweep.Schedule, logrus.StandardLogger())
		if err := scheduler.Start(); err != nil {
			logrus.WithError(err).Fatal("overdue sweep scheduler failed to start")
		}
	}

	go func() {
		logrus.WithField("port", cfg.AppPort).Info("starting server")
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			logrus.WithError(err).Fatal("fiber.Listen error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logrus.Info("shutting down")
	if scheduler != nil {
		scheduler.Stop()
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.WithError(err).Error("shutdown failed")
	}
}
