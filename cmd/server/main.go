// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pulsar-base/pulsar-backend/api"
	"github.com/pulsar-base/pulsar-backend/config"
	"github.com/pulsar-base/pulsar-backend/internal/logger"
	"github.com/pulsar-base/pulsar-backend/internal/permsync"
	"github.com/pulsar-base/pulsar-backend/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

func main() {
	customLog.Println("Starting Pulsar Base server...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// 2. Initialize Database Connection
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.ConnectDB(ctx, cfg)
	if err != nil {
		customLog.Fatalf("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	defer func() {
		customLog.Println("Closing database connection...")
		if err := db.Close(); err != nil {
			customLog.Printf("Error closing database: %v", err)
		}
	}()

	// 3. Start the permission sync worker
	worker := permsync.NewWorker(db, cfg)
	go worker.Run(ctx)

	// 4. Setup Router (passing dependencies)
	router := api.SetupRouter(db, cfg, worker)

	// 5. Start Server
	customLog.Printf("Server listening on port %s", cfg.ServerPort)
	if err := router.Run(fmt.Sprintf(":%s", cfg.ServerPort)); err != nil {
		customLog.Fatalf("Failed to start server: %v", err)
	}
}
