package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"skillswap-backend/internal/config"
	"skillswap-backend/internal/database"
	"skillswap-backend/internal/handlers"
	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/middleware"
	"skillswap-backend/internal/repository"
	"skillswap-backend/internal/router"
	"skillswap-backend/internal/services"
	"skillswap-backend/internal/websocket"
	"skillswap-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Logger(), logger.DefaultServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	log.Info("starting skillswap backend", zap.String("env", cfg.Env))

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("invalid session timezone", zap.Error(err))
	}

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pool.Close()
	log.Info("postgres connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL, cfg.WorkerConcurrency, log.Named("redis"))
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClients.Close()
	log.Info("redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
	log.Info("database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	connectionRepo := repository.NewConnectionRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Step 5: Start WebSocket Hub ────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	wsHub := websocket.NewHub(websocket.NewRegistry(), jwtAuth, redisClients.PubSub, log.Named("websocket"))
	go wsHub.Run(ctx)
	log.Info("websocket hub started")

	// ──── Step 6: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiModel,
		cfg.GeminiConcurrentReqs,
		quizRepo,
		redisClients.Queue,
		log.Named("gemini"),
	)
	if err != nil {
		log.Fatal("gemini client initialization failed", zap.Error(err))
	}
	defer geminiService.Close()

	// ──── Initialize Services ────
	sessionService := services.NewSessionService(sessionRepo, connectionRepo, userRepo, wsHub, loc, log.Named("sessions"))
	connectionService := services.NewConnectionService(connectionRepo, userRepo, wsHub, log.Named("connections"))
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL, log.Named("email"))

	// ──── Step 7: Start Job Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, geminiService, jobRepo, quizRepo, cfg.WorkerConcurrency, log.Named("worker"))
	workerPool.Start()

	quizService := services.NewQuizService(quizRepo, jobRepo, workerPool, log.Named("quizzes"))

	reminders, err := services.NewReminderScheduler(sessionRepo, userRepo, emailService, loc, cfg.ReminderSchedule, cfg.ReminderLead(), log.Named("reminders"))
	if err != nil {
		log.Fatal("reminder scheduler initialization failed", zap.Error(err))
	}
	reminders.Start()

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(sessionService)
	connectionHandler := handlers.NewConnectionHandler(connectionService, wsHub)
	quizHandler := handlers.NewQuizHandler(quizService)

	// ──── Step 8: Start HTTP Server ────
	r, stopRouter := router.New(
		jwtAuth,
		sessionHandler,
		connectionHandler,
		quizHandler,
		wsHub.HandleWebSocket,
		cfg.FrontendURL,
		log.Named("http"),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		stopRouter()
		reminders.Stop()
		workerPool.Stop()
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", zap.Error(err))
		}
	}()

	log.Info("skillswap backend ready",
		zap.String("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)),
		zap.String("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
