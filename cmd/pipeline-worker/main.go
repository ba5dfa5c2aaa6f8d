// Command pipeline-worker runs the document-ingestion worker pool: it
// dequeues and processes every stage job until told to shut down, using a
// signal-driven graceful-shutdown shape.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hoferino/manda-platform/coordinator"
)

func main() {
	cfg := coordinator.ConfigFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := coordinator.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build dependencies: %v", err)
	}

	c := coordinator.New(deps)
	c.Start(ctx)
	log.Println("pipeline-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down pipeline-worker...")
	cancel()
	c.Stop()
	log.Println("pipeline-worker stopped")
}
