package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tech-grandpa/banana-paper-ui/internal/artifact"
	"github.com/tech-grandpa/banana-paper-ui/internal/config"
	"github.com/tech-grandpa/banana-paper-ui/internal/handler"
	"github.com/tech-grandpa/banana-paper-ui/internal/logger"
	"github.com/tech-grandpa/banana-paper-ui/internal/pipeline"
	"github.com/tech-grandpa/banana-paper-ui/internal/runner"
	"github.com/tech-grandpa/banana-paper-ui/internal/service"
	"github.com/tech-grandpa/banana-paper-ui/internal/store"
	ws "github.com/tech-grandpa/banana-paper-ui/internal/websocket"
	"github.com/tech-grandpa/banana-paper-ui/pkg/response"
)

func main() {
	// Fallback logger until configuration is loaded
	slogger := logger.NewDefault()

	cfg, err := config.Load()
	if err != nil {
		slogger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	slogger = logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	// Job store — the only shared mutable state in the process
	jobStore := store.New()

	// Pipeline: real Gemini-backed generation when configured, mock otherwise
	var pipe pipeline.Pipeline
	gemini := pipeline.NewGeminiPipeline(&cfg.Gemini, cfg.Generation.OutputDir)
	if gemini.IsConfigured() {
		pipe = gemini
	} else {
		slogger.Info("gemini API key not configured, using mock pipeline")
		pipe = pipeline.NewMockPipeline(cfg.Generation.OutputDir,
			time.Duration(cfg.Generation.MockStepDelayMs)*time.Millisecond)
	}

	// WebSocket hub for live progress
	hub := ws.NewHub(slogger)
	go hub.Run()

	// Core components
	jobRunner := runner.New(jobStore, pipe, hub, slogger)
	queryService := service.NewQueryService(jobStore)
	resolver := artifact.NewResolver(jobStore)

	validate := validator.New()
	generateHandler := handler.NewGenerateHandler(jobRunner, queryService, resolver, validate,
		cfg.Generation.DefaultIterations)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"gemini": gemini.IsConfigured(),
			},
			"jobs": jobStore.Len(),
		})
	})

	// API routes
	api := app.Group("/api")

	generateLimiter := limiter.New(limiter.Config{
		Max:        cfg.RateLimit.GeneratePerMin,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return response.RateLimited(c)
		},
	})

	api.Post("/generate", generateLimiter, generateHandler.Generate)
	api.Get("/status/:jobId", generateHandler.Status)
	api.Get("/result/:jobId", generateHandler.Result)
	api.Get("/result/:jobId/image/:filename", generateHandler.Image)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slogger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slogger.Error("server shutdown error", slog.Any("error", err))
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	slogger.Info("server starting", slog.String("addr", addr), slog.String("env", cfg.Server.Env))
	if err := app.Listen(addr); err != nil {
		slogger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
