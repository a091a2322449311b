// @title HackHub Backend
// @version 0.1
// @description Community backend for hackathon teams: realtime chat, message lifecycle, uploads.

// @host localhost:8080
// @BasePath /api
// @query.collection.format multi
// @schemes http

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"log"

	"hackhub/backend/internal/app"
	"hackhub/backend/internal/config"
	"hackhub/backend/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if err := logger.Setup(cfg.LogDir); err != nil {
		log.Fatalf("Logger error: %v", err)
	}

	app.Run(cfg)
}
