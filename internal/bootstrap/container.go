package bootstrap

import (
	"context"
	"log"

	"csv-dedupe-be/internal/config"
	"csv-dedupe-be/internal/controller"
	"csv-dedupe-be/internal/pkg/logger"
	"csv-dedupe-be/internal/repository/memory"
	"csv-dedupe-be/internal/service"
	"csv-dedupe-be/internal/websocket"
	"csv-dedupe-be/pkg/dedupe"
	"csv-dedupe-be/pkg/jobs"

	pktNats "csv-dedupe-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	JobController     controller.IJobController

	// Background services (exposed for main.go to run)
	WorkerService service.IWorkerService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Job Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS telemetry bus; the workflow runs fine without it.
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis result store
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)

	var resultStore jobs.ResultStore
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Falling back to in-memory result store", err)
		resultStore = jobs.NewMemoryResultStore()
		rdb = nil
	} else {
		resultStore = jobs.NewRedisResultStore(rdb)
	}

	gateway := jobs.NewGateway(pubSub, cfg.Jobs.Topic, resultStore, cfg.Jobs.ResultTTL)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/jobs.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Services
	sessionRepo := memory.NewSessionRepository(cfg.Dedupe.SessionTTL)
	telemetryService := service.NewTelemetryService(natsPub, sysLogger)

	sessionService := service.NewDedupeSessionService(
		sessionRepo,
		gateway,
		dedupe.NewEngine,
		telemetryService,
		sysLogger,
		cfg.Upload.Dir,
		cfg.Upload.MaxSizeBytes,
		cfg.Dedupe.SampleSize,
	)

	workerService := service.NewWorkerService(
		pubSub,
		cfg.Jobs.Topic,
		gateway,
		dedupe.NewClusterer(),
		wsHub,
		sysLogger,
	)

	// 4. Controllers
	sessionController := controller.NewSessionController(sessionService)
	jobController := controller.NewJobController(sessionService, wsHub)

	return &Container{
		SessionController: sessionController,
		JobController:     jobController,
		WorkerService:     workerService,
		WebSocketHub:      wsHub,
	}
}
