package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/ruangujian/asesmen-backend/internal/config"
	"github.com/ruangujian/asesmen-backend/internal/database"
	"github.com/ruangujian/asesmen-backend/internal/handler"
	"github.com/ruangujian/asesmen-backend/internal/logger"
	"github.com/ruangujian/asesmen-backend/internal/repository"
	"github.com/ruangujian/asesmen-backend/internal/router"
	"github.com/ruangujian/asesmen-backend/internal/service"
	"github.com/ruangujian/asesmen-backend/internal/session"
	"github.com/ruangujian/asesmen-backend/internal/store"
	"github.com/ruangujian/asesmen-backend/internal/validator"
	"github.com/ruangujian/asesmen-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Asesmen Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	teacherRepo := repository.NewTeacherRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	answerStore := store.NewAnswerStore(rdb)
	authService := service.NewAuthService(cfg, rdb)
	accountService := service.NewAccountService(studentRepo, teacherRepo)
	assignmentService := service.NewAssignmentService(assignmentRepo, questionRepo, rdb, log)
	sessionService := service.NewSessionService(sessionRepo, assignmentRepo, rdb, log)
	submissionService := service.NewSubmissionService(assignmentService, sessionRepo, answerStore, rdb, log)
	integrityService := service.NewIntegrityService(answerStore, rdb, log)
	gradingService := service.NewGradingService(assignmentRepo, questionRepo, submissionRepo, sessionRepo, log)
	monitorService := service.NewMonitorService(monitorRepo)

	sessionManager := session.NewManager(log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth: handler.NewAuthHandler(authService, accountService),
		StudentPortal: handler.NewStudentPortalHandler(sessionService, assignmentService,
			sessionManager, submissionService, answerStore, log),
		Assignment:    handler.NewAssignmentHandler(assignmentService, sessionService),
		Grading:       handler.NewGradingHandler(gradingService),
		Monitor:       handler.NewMonitorHandler(monitorService, sessionService, assignmentService, rdb, log),
		WS: handler.NewWSHandler(cfg, sessionManager, authService, sessionService,
			assignmentService, submissionService, integrityService, answerStore, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(submissionRepo, rdb, log)
	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	scoringWorker := worker.NewScoringWorker(submissionRepo, sessionRepo, rdb, log)

	go autosaveWorker.Start(workerCtx)
	go violationWorker.Start(workerCtx)
	go scoringWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published assignments into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := assignmentService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
