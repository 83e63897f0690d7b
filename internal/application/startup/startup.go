// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/revtrace/revtrace-go/internal/application/container"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/persistence/database"
	"github.com/revtrace/revtrace-go/internal/presentation/http/server"
	"github.com/revtrace/revtrace-go/pkg/config"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	start := time.Now().UTC()

	// Step 1: Initialize the channeled logger
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	logger.Startup().Info("RevTrace attribution core starting",
		"driver", config.DBDriver,
		"port", config.Port)

	// Step 2: Connect to the attribution store
	phaseStart := time.Now()
	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DBDataSource, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.LogStartupPhase("database_connection", time.Since(phaseStart), true)

	// Step 3: Ensure the schema exists
	phaseStart = time.Now()
	tableCreator := database.NewTableCreator()
	if err := tableCreator.CreateSchema(db.DB); err != nil {
		logger.LogStartupPhase("schema_creation", time.Since(phaseStart), false)
		return fmt.Errorf("failed to create schema: %w", err)
	}
	logger.LogStartupPhase("schema_creation", time.Since(phaseStart), true)

	// Step 4: Create dependency injection container
	appContainer := container.NewContainer(db, logger)
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 5: Start the live event broadcaster
	go appContainer.Broadcaster.Run()

	// Step 6: Periodic performance marker cleanup
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				appContainer.PerfTracker.Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	// Step 7: Start HTTP server
	srv := server.New(config.Port, appContainer)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	logger.Startup().Info("Startup complete", "duration", time.Since(start))

	// Step 8: Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case sig := <-quit:
		logger.Shutdown().Info("Shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Graceful shutdown failed", "error", err.Error())
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Println("Server stopped cleanly")
	return nil
}
