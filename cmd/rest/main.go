package main

import (
	"context"
	"log"

	"csv-dedupe-be/internal/bootstrap"
	"csv-dedupe-be/internal/config"
	"csv-dedupe-be/internal/server"
	"csv-dedupe-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Worker
	// The job bus is in-process; the worker consumes from the same channel
	// the gateway publishes to. Results land in Redis either way.
	go func() {
		log.Println("Background: Starting Worker Service...")
		if err := container.WorkerService.Consume(context.Background()); err != nil {
			log.Printf("Background Worker Error: %v", err)
		}
	}()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
