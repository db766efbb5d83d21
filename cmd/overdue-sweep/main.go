// Command overdue-sweep runs the overdue-payment sweep once and prints a JSON
// summary. It exits non-zero when the sweep fails.
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/database"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
)

func main() {
	cfg := config.Load()
	log := services.NewSweepLogger(cfg.Sweep.LogPath)

	db, err := database.Connect(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		log.WithError(err).Error("database connection failed")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	result, err := services.NewOverdueSweeper(db, log, telegram).Run(ctx)
	if err != nil {
		log.WithError(err).Error("overdue sweep failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		log.WithError(encErr).Error("encode summary failed")
	}

	if !result.Success {
		os.Exit(1)
	}
}
