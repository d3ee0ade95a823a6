// Package main provides the GenStack API server implementation.
package main

import (
	"database/sql"
	"log/slog"
	"strconv"
	"time"

	"github.com/genstack/genstack/pkg/documents"
	"github.com/genstack/genstack/pkg/eventbus"
	"github.com/genstack/genstack/pkg/generation"
	"github.com/genstack/genstack/pkg/knowledge"
	"github.com/genstack/genstack/pkg/persistence"
	"github.com/genstack/genstack/pkg/services"
	"github.com/genstack/genstack/pkg/web"
	"github.com/genstack/genstack/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// Config carries the external collaborator settings for the API server.
type Config struct {
	GeminiAPIKey string
	RedisURL     string
	Tracer       trace.Tracer
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	db          *sql.DB
	eventBus    eventbus.EventBus
	config      Config
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	db *sql.DB,
	eventBus eventbus.EventBus,
	config Config,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		db:          db,
		eventBus:    eventBus,
		config:      config,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	embedder := knowledge.NewGeminiEmbedder(knowledge.GeminiEmbedderConfig{
		APIKey: a.config.GeminiAPIKey,
	}, a.logger)

	vectorStore := knowledge.NewVectorStore(a.db, embedder, a.logger)

	var store knowledge.Store = vectorStore

	if a.config.RedisURL != "" {
		opts, err := redis.ParseURL(a.config.RedisURL)
		if err != nil {
			a.logger.Error("Invalid Redis URL, embedding cache disabled", "error", err)
		} else {
			store = knowledge.NewCachedStore(vectorStore, redis.NewClient(opts), 24*time.Hour, a.logger)
		}
	}

	client := generation.NewGeminiClient(generation.GeminiConfig{
		APIKey: a.config.GeminiAPIKey,
	}, a.logger)

	engineOpts := []workflow.EngineOption{workflow.WithEventBus(a.eventBus)}
	if a.config.Tracer != nil {
		engineOpts = append(engineOpts, workflow.WithTracer(a.config.Tracer))
	}

	engine := workflow.NewEngine(store, client, a.logger, engineOpts...)

	workflowService := services.NewWorkflow(a.persistence)
	chatService := services.NewChat(a.persistence, engine, a.logger)
	ingester := documents.NewIngester(a.persistence, embedder, vectorStore, a.logger)
	documentService := services.NewDocument(a.persistence, ingester)

	handlers := web.NewAPIHandlers(workflowService, chatService, documentService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("GenStack API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/validate", handlers.ValidateWorkflow)
	w.Post("/:id/chat", handlers.Chat)
	w.Get("/:id/sessions", handlers.GetSessions)

	d := app.Group("/documents")
	d.Post("/", handlers.UploadDocument)
	d.Get("/", handlers.GetDocuments)
	d.Get("/:id", handlers.GetDocument)
	d.Delete("/:id", handlers.DeleteDocument)

	s := app.Group("/sessions")
	s.Get("/:id", handlers.GetSession)
	s.Delete("/:id", handlers.DeleteSession)
	s.Get("/:id/messages", handlers.GetSessionMessages)

	app.Get("/components", handlers.GetComponents)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
