/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Compliance Calendar Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire the generator and API handler
  4. Start the evaluation scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port           HTTP server port (default: 8080)
  -db             SQLite database path (default: compliance.db)
                  Use ":memory:" for in-memory database
  -pass-interval  Evaluation pass interval (default: 1h)
  -workers        Re-evaluation worker pool size (default: 4)
  -no-scheduler   Disable the background pass scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the scheduler
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/compliance.db"

  # Run with in-memory database and a fast pass cadence
  ./server -db=":memory:" -pass-interval=1m

ENVIRONMENT:
  No environment variables currently. All config via flags.

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background evaluation passes
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/compliance-engine/api"
	"github.com/warp/compliance-engine/engine"
	"github.com/warp/compliance-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "compliance.db", "SQLite database path")
	passInterval := flag.Duration("pass-interval", time.Hour, "Evaluation pass interval")
	workers := flag.Int("workers", 4, "Re-evaluation worker pool size")
	noScheduler := flag.Bool("no-scheduler", false, "Disable the background pass scheduler")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the engine
	gen := engine.NewGenerator(store.Stores(), &engine.LogSink{}, log.Printf)
	gen.Workers = *workers

	// Initialize handler and scheduler
	handler := api.NewHandler(store, gen)
	scheduler := api.NewEvaluationScheduler(store, gen)
	scheduler.CheckInterval = *passInterval
	scheduler.Enabled = !*noScheduler
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
