// Command pipeline-api runs the thin HTTP surface over the pipeline:
// similarity search, the graph-ingest webhook, and job observability,
// using a signal-driven graceful-shutdown shape.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoferino/manda-platform/api"
	"github.com/hoferino/manda-platform/config"
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
	defer deps.Close()

	ec := config.NewEnvConfig("")
	server := api.NewServer(deps, api.Config{APIKey: ec.GetString("API_KEY", "")})

	port := ec.GetString("PORT", "8080")
	go func() {
		log.Printf("pipeline-api listening on :%s", port)
		if err := server.Start(":" + port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down pipeline-api...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("pipeline-api stopped")
}
