package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/api"
	"github.com/dispatchworks/taskhub/backend/internal/auth"
	"github.com/dispatchworks/taskhub/backend/internal/config"
	"github.com/dispatchworks/taskhub/backend/internal/dispatch"
	"github.com/dispatchworks/taskhub/backend/internal/history"
	"github.com/dispatchworks/taskhub/backend/internal/ingestion"
	"github.com/dispatchworks/taskhub/backend/internal/metrics"
	"github.com/dispatchworks/taskhub/backend/internal/notify"
	"github.com/dispatchworks/taskhub/backend/internal/queue"
	"github.com/dispatchworks/taskhub/backend/internal/rules"
	"github.com/dispatchworks/taskhub/backend/internal/session"
	"github.com/dispatchworks/taskhub/backend/internal/storage"
	"github.com/dispatchworks/taskhub/backend/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting taskhub backend server")

	// Create context for background services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable store (no-op unless DYNAMO_MODE is set)
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Sessions and the work-state machine
	registry := session.NewRegistry()
	sessions := session.NewStore()
	stateLog := history.NewLog(cfg.HistoryCapacity)
	machine := session.NewMachine(registry, sessions, stateLog, cfg.ReservationTimeout, log.Logger)
	machine.SetStore(store)

	// Queues and routing
	queues := queue.NewManager(log.Logger)
	queues.SetStore(store)
	machine.SetTaskBackend(queues)

	pipelines := rules.NewPipelineStore()
	router := rules.NewRouter(pipelines, log.Logger)

	// Ingestion
	loaders := ingestion.NewLoaderStore()
	staging := ingestion.NewStagingStore()
	ingestSvc := ingestion.NewService(loaders, staging, pipelines, router, queues, log.Logger)
	scheduler := ingestion.NewScheduler(ingestSvc, loaders, cfg.SchedulerInterval, log.Logger)
	go scheduler.Start(ctx)

	// Agent notification hub
	hub := notify.NewHub(log.Logger)
	go hub.Run()
	machine.SetNotifier(hub)
	wsHandler := notify.NewHandler(hub, log.Logger)

	// Dispatch loop
	roster := dispatch.NewRoster()
	dispatcher := dispatch.NewDispatcher(queues, machine, roster, nil, cfg.DispatchInterval, log.Logger)
	go dispatcher.Start(ctx)

	// HTTP handlers
	sessionsHandler := api.NewSessionsHandler(machine, sessions, registry, stateLog, log.Logger)
	ingestionHandler := api.NewIngestionHandler(ingestSvc, loaders, staging, log.Logger)
	rulesConfigHandler := api.NewRulesConfigHandler(router, log.Logger)
	adminHandler := api.NewAdminHandler(pipelines, queues, loaders, registry, dispatcher, store, log.Logger)
	skillsHandler := api.NewSkillsHandler(roster, log.Logger)
	recordsHandler := api.NewRecordsHandler(store, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Route("/sessions", func(r chi.Router) {
				r.Route("/agent/{agentId}", func(r chi.Router) {
					r.Get("/", sessionsHandler.GetSession)
					r.Post("/login", sessionsHandler.Login)
					r.Post("/logout", sessionsHandler.Logout)
					r.Post("/state", sessionsHandler.ChangeState)
					r.Post("/task/accept", sessionsHandler.AcceptTask)
					r.Post("/task/reject", sessionsHandler.RejectTask)
					r.Post("/task/complete", sessionsHandler.CompleteTask)
					r.Post("/task/disposition", sessionsHandler.Disposition)
					r.Get("/summary", sessionsHandler.Summary)
					r.Get("/history", sessionsHandler.History)
				})
				r.Get("/team/{teamId}/summary", sessionsHandler.TeamSummary)
			})

			r.Route("/ingestion", func(r chi.Router) {
				r.Post("/upload", ingestionHandler.Upload)
				r.Post("/execute", ingestionHandler.Execute)
				r.Post("/execute/{id}", ingestionHandler.Execute)
				r.Post("/held/resolve", ingestionHandler.ResolveHeld)
				r.Route("/loaders/{loaderId}", func(r chi.Router) {
					r.Get("/runs", ingestionHandler.ListRuns)
					r.Get("/runs/{runId}", ingestionHandler.GetRun)
					r.Get("/staging", ingestionHandler.GetStaging)
					r.Delete("/staging", ingestionHandler.DiscardStaging)
				})
			})

			r.Route("/rules/config", func(r chi.Router) {
				r.Get("/operators", rulesConfigHandler.GetOperators)
				r.Get("/fields", rulesConfigHandler.GetFields)
				r.Get("/actions", rulesConfigHandler.GetActions)
			})
			r.Post("/rules/pipelines/{pipelineId}/test", rulesConfigHandler.TestRoute)

			r.Route("/records", func(r chi.Router) {
				r.Use(api.RequireManagerOrAdmin)
				r.Get("/items", recordsHandler.GetWorkItems)
				r.Get("/agents/{agentId}/events", recordsHandler.GetAgentEvents)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(api.RequireAdmin)

				r.Route("/pipelines", func(r chi.Router) {
					r.Get("/", adminHandler.ListPipelines)
					r.Post("/", adminHandler.CreatePipeline)
					r.Route("/{pipelineId}", func(r chi.Router) {
						r.Get("/", adminHandler.GetPipeline)
						r.Put("/", adminHandler.UpdatePipeline)
						r.Delete("/", adminHandler.DeletePipeline)
						r.Post("/rules", adminHandler.CreateRule)
						r.Put("/rules/{ruleId}", adminHandler.UpdateRule)
						r.Delete("/rules/{ruleId}", adminHandler.DeleteRule)
					})
				})

				r.Route("/queues", func(r chi.Router) {
					r.Get("/", adminHandler.ListQueues)
					r.Post("/", adminHandler.CreateQueue)
					r.Get("/{queueId}", adminHandler.GetQueue)
					r.Delete("/{queueId}", adminHandler.DeleteQueue)
				})

				r.Route("/items/{itemId}", func(r chi.Router) {
					r.Delete("/", adminHandler.CancelItem)
					r.Post("/push", adminHandler.ForcePush)
				})

				r.Route("/loaders", func(r chi.Router) {
					r.Get("/", adminHandler.ListLoaders)
					r.Post("/", adminHandler.CreateLoader)
					r.Route("/{loaderId}", func(r chi.Router) {
						r.Get("/", adminHandler.GetLoader)
						r.Put("/", adminHandler.UpdateLoader)
						r.Delete("/", adminHandler.DeleteLoader)
						r.Post("/enabled", adminHandler.SetLoaderEnabled)
					})
				})

				r.Route("/states", func(r chi.Router) {
					r.Get("/", adminHandler.ListStates)
					r.Post("/", adminHandler.CreateState)
					r.Route("/{stateId}", func(r chi.Router) {
						r.Put("/", adminHandler.UpdateState)
						r.Delete("/", adminHandler.DeleteState)
						r.Post("/enabled", adminHandler.SetStateEnabled)
					})
				})

				r.Route("/agents/{agentId}/skills", func(r chi.Router) {
					r.Get("/", skillsHandler.GetSkills)
					r.Put("/", skillsHandler.SetSkills)
					r.Delete("/", skillsHandler.RemoveSkills)
				})

				r.Post("/store/wipe", adminHandler.WipeStore)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the dispatch loop and loader scheduler
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"taskhub-backend"}`)
}
