package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-backend/internal/config"
	"classroom-backend/internal/database"
	"classroom-backend/internal/handlers"
	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/pipeline"
	"classroom-backend/internal/repository"
	"classroom-backend/internal/router"
	"classroom-backend/internal/services"
	"classroom-backend/internal/websocket"
	"classroom-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Mode:     cfg.LogMode,
		Level:    cfg.LogLevel,
		Redact:   cfg.LogRedaction,
		HashSalt: cfg.LogHashSalt,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("starting classroom backend", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, database.RedisOptions{
		URL:     cfg.RedisURL,
		Workers: cfg.WorkerCount,
	})
	if err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	defer redisClients.Close()
	log.Info("redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("database migration failed", "error", err)
	}

	// ──── Initialize Repositories ────
	classworkRepo := repository.NewClassworkRepo(pool)
	paperRepo := repository.NewCheckedPaperRepo(pool)
	presentationRepo := repository.NewPresentationRepo(pool)
	moduleRepo := repository.NewModuleRepo(pool)
	conversationRepo := repository.NewConversationRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	contentStore := repository.NewContentStore(classworkRepo, presentationRepo, moduleRepo, paperRepo)

	// ──── Step 5: Initialize Gemini and Vision Clients ────
	geminiService, err := services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, log)
	if err != nil {
		log.Fatal("gemini client initialization failed", "error", err)
	}
	defer geminiService.Close()
	log.Info("gemini client initialized", "model", cfg.GeminiModel)

	var extractor pipeline.Extractor
	ocrService, err := services.NewOCRService(ctx, cfg.OCRLanguage, log)
	if err != nil {
		log.Warn("vision client unavailable, paper checking disabled", "error", err)
	} else {
		defer ocrService.Close()
		extractor = ocrService
	}

	contentPipeline, err := pipeline.New(geminiService, extractor, contentStore, cfg.PipelineConfig())
	if err != nil {
		log.Fatal("pipeline configuration invalid", "error", err)
	}

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	youtubeService := services.NewYouTubeService(log)
	tutorService := services.NewTutorService(geminiService, conversationRepo, cfg.GenerationOptions(), log)
	publisher := services.NewUpdatePublisher(redisClients.Queue, log)
	queue := worker.NewQueue(redisClients.Queue)

	// ──── Initialize Handlers ────
	h := router.Handlers{
		Classwork:    handlers.NewClassworkHandler(contentPipeline, classworkRepo, log),
		Check:        handlers.NewCheckHandler(contentPipeline, paperRepo, log),
		Presentation: handlers.NewPresentationHandler(contentPipeline, presentationRepo, log),
		Module:       handlers.NewModuleHandler(contentPipeline, moduleRepo, youtubeService, log),
		Chatbot:      handlers.NewChatbotHandler(tutorService, log),
		Jobs:         handlers.NewJobHandler(jobRepo, queue, log),
	}

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(queue, contentPipeline, jobRepo, publisher, log, cfg.WorkerCount)
	workerPool.Start(ctx)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL, log)
	defer wsHub.Close()

	// ──── Step 8: Start HTTP Server ────
	r := router.New(ctx, jwtAuth, h, wsHub, log, router.Options{
		FrontendURL:         cfg.FrontendURL,
		GenerationRateLimit: cfg.GenerationRateLimit,
	})

	// A grading request may spend both OCR and generation budgets before answering.
	writeTimeout := cfg.OCRTimeout + cfg.GenerationTimeout + cfg.PersistenceTimeout + 15*time.Second
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "error", err)
		}
	}()

	log.Info("classroom backend ready", "addr", server.Addr, "ws", "/ws")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", "error", err)
	}

	workerPool.Stop()
	log.Info("stopped")
}
