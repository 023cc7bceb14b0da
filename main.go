// main.go
package main

import (
	"context"
	"log"

	"villa-booking/cmd"
	"villa-booking/internal/data/repository"
	"villa-booking/internal/gateway"
	"villa-booking/internal/wire"
	"villa-booking/pkg/database"
	"villa-booking/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	// Payment gateway client
	gw := gateway.NewClient(config.Gateway, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, gw, config, logger)

	// Background sweep for lapsed holds and finished stays
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go app.Service.Reaper.Run(reaperCtx)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	cmd.APIServer(app.Router, config.App.Port)
}
