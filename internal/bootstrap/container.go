package bootstrap

import (
	"context"
	"log"

	"floodguard-be/internal/config"
	"floodguard-be/internal/controller"
	"floodguard-be/internal/handler"
	"floodguard-be/internal/pkg/logger"
	"floodguard-be/internal/repository/implementation"
	"floodguard-be/internal/repository/memory"
	"floodguard-be/internal/service"
	"floodguard-be/internal/websocket"
	"floodguard-be/pkg/embedding"
	"floodguard-be/pkg/llm/factory"

	pktNats "floodguard-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SearchController      controller.ISearchController
	NewsController        controller.INewsController
	HealthController      controller.IHealthController
	DiagnosticsController controller.IDiagnosticsController

	// Streaming chat
	ChatHandler  *handler.ChatHandler
	WebSocketHub *websocket.Hub

	// Background Services (Exposed for main.go to run)
	TraceService service.ITraceService

	Logger logger.ILogger

	closers []func()
}

// liveCounter feeds the health endpoint.
type liveCounter struct {
	hub      *websocket.Hub
	sessions *memory.SessionRepository
}

func (c liveCounter) Connections() int { return c.hub.Count() }
func (c liveCounter) Sessions() int    { return c.sessions.Count() }

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	traceLogger := logger.NewIsolatedLogger(cfg.App.TraceLogPath)
	projectRepo := implementation.NewProjectRepository(db)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)

	// 3. Providers
	embeddingProvider := embedding.NewProvider(cfg.Ai.EmbeddingProvider, cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	if embeddingProvider == nil {
		log.Printf("[INFO] Embeddings disabled (EMBEDDING_PROVIDER=%s)", cfg.Ai.EmbeddingProvider)
	} else {
		log.Printf("[INFO] Using Embedding Provider: %s (%s)", cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel)
	}

	llmBaseURL := cfg.Ai.LLMBaseURL
	if llmBaseURL == "" && cfg.Ai.LLMProvider == "ollama" {
		llmBaseURL = cfg.Ai.OllamaBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, llmBaseURL)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	c := &Container{Logger: sysLogger}

	// NATS is optional; traces then stay in the local trace log.
	var forwarder service.EventPublisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			forwarder = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// Redis backs the news cache only.
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v (news cache disabled)", err)
			rdb.Close()
			rdb = nil
		} else {
			c.closers = append(c.closers, func() { rdb.Close() })
		}
	}

	sessionRepo := memory.NewSessionRepository(cfg.Chat.HistoryMaxMessages, memory.DefaultIdleExpiry)

	wsHub := websocket.NewHub(logger.NewIsolatedLogger("logs/websocket.log"))
	go wsHub.Run()

	// 5. Services
	projectService := service.NewProjectService(projectRepo, embeddingProvider, sysLogger)
	newsService := service.NewNewsService(service.NewsOptions{
		SearchURL: cfg.News.SearchURL,
		Feeds:     cfg.News.Feeds,
		CacheTTL:  cfg.News.CacheTTL,
	}, rdb, sysLogger)
	traceService := service.NewTraceService(pubSub, traceLogger, forwarder, sysLogger)
	chatService := service.NewChatService(
		projectService,
		newsService,
		llmProvider,
		sessionRepo,
		traceService,
		service.ChatOptions{
			RequiredCredentials: cfg.Chat.RequiredCredentials,
			ContextWindow:       cfg.Chat.ContextWindow,
			SearchLimit:         cfg.Chat.SearchLimit,
			NewsResults:         cfg.News.Results,
			Model:               cfg.Ai.LLMModel,
			LLMCredential:       cfg.Ai.LLMCredential,
		},
		sysLogger,
	)

	// 6. Controllers
	c.SearchController = controller.NewSearchController(projectService)
	c.NewsController = controller.NewNewsController(newsService)
	c.HealthController = controller.NewHealthController(projectService, liveCounter{hub: wsHub, sessions: sessionRepo})
	c.DiagnosticsController = controller.NewDiagnosticsController(traceService)
	c.ChatHandler = handler.NewChatHandler(wsHub, chatService, sysLogger)
	c.WebSocketHub = wsHub
	c.TraceService = traceService
	c.closers = append(c.closers, func() { pubSub.Close() })

	return c
}

// Close releases external connections.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
