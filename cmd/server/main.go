/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the margin engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the logger
  3. Initialize SQLite store (goose migrations run on open)
  4. Apply the seed reference document, if any
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (PORT, default: 8080)
  -db      SQLite database path (DB_PATH, default: margin.db)
           Use ":memory:" for in-memory database
  -seed    Reference-data document, JSON or YAML (SEED_FILE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/margin.db" -seed=./seed.yaml
  LOG_FORMAT=text LOG_LEVEL=debug ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/margin-engine/api"
	"github.com/warp/margin-engine/config"
	"github.com/warp/margin-engine/factory"
	"github.com/warp/margin-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.SeedFile, "seed", cfg.SeedFile, "Reference-data document (JSON or YAML)")
	flag.Parse()

	log := config.NewLogger(cfg)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	if cfg.SeedFile != "" {
		if err := seed(context.Background(), store, cfg.SeedFile); err != nil {
			config.LogError(log, "main", "seed", cfg.SeedFile, err)
			os.Exit(1)
		}
		log.WithField("file", cfg.SeedFile).Info("Reference data loaded")
	}

	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "db": cfg.DBPath}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		return
	}

	log.Info("Server stopped")
}

func seed(ctx context.Context, store *sqlite.Store, path string) error {
	doc, err := factory.LoadFile(path)
	if err != nil {
		return err
	}
	return doc.Apply(ctx, store)
}
