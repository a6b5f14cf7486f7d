package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/studioflow-io/be-orders/internal/client"
	"github.com/studioflow-io/be-orders/internal/config"
	"github.com/studioflow-io/be-orders/internal/database"
	"github.com/studioflow-io/be-orders/internal/handler"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/middleware"
	"github.com/studioflow-io/be-orders/internal/notify"
	"github.com/studioflow-io/be-orders/internal/repository"
	"github.com/studioflow-io/be-orders/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Orders Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	// Initialize NATS for notification events. An empty URL disables
	// publishing; delivery is best-effort so a failed connection only warns.
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable; event publishing disabled")
			natsConn = nil
		} else {
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}

	// Initialize repositories
	workflowRepo := repository.NewWorkflowRepository(db)
	workflowLogRepo := repository.NewWorkflowLogRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	clientRepo := repository.NewClientRepository(db)
	contractRepo := repository.NewContractRepository(db)
	notificationLogRepo := repository.NewNotificationLogRepository(db)

	// Initialize external collaborator clients
	chatClient := client.NewChatClient(cfg.Chat.BaseURL, cfg.Chat.Token)
	messengerClient := client.NewMessengerClient(cfg.Messenger.BaseURL, cfg.Messenger.APIKey, cfg.Messenger.SenderKey)
	emailClient := client.NewEmailClient(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	contractRenderer := client.NewContractRenderer()
	eventPublisher := client.NewNotificationPublisher(natsConn, log.Logger)

	// Initialize notification dispatcher
	dispatcher := notify.NewDispatcher(
		chatClient,
		messengerClient,
		notificationLogRepo,
		clientRepo,
		eventPublisher,
		cfg.Notify.Timeout,
		log,
	)

	// Initialize services
	workflowService := service.NewWorkflowService(workflowRepo, workflowLogRepo, dispatcher, log)
	approvalService := service.NewApprovalService(submissionRepo, chatClient, dispatcher, cfg.Notify.Timeout, log)
	renewalService := service.NewRenewalService(clientRepo, dispatcher, log)
	contractService := service.NewContractService(contractRepo, clientRepo, contractRenderer, emailClient, notificationLogRepo, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(workflowService, approvalService, renewalService, contractService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Submission routes
	mux.HandleFunc("/api/v1/submissions", httpHandler.CreateSubmission)
	mux.HandleFunc("/api/v1/submissions/get", httpHandler.GetSubmission)
	mux.HandleFunc("/api/v1/submissions/approve", httpHandler.ApproveSubmission)
	mux.HandleFunc("/api/v1/submissions/reject", httpHandler.RejectSubmission)

	// Workflow routes
	mux.HandleFunc("/api/v1/workflows", httpHandler.ListWorkflows)
	mux.HandleFunc("/api/v1/workflows/get", httpHandler.GetWorkflow)
	mux.HandleFunc("/api/v1/workflows/transition", httpHandler.TransitionWorkflow)
	mux.HandleFunc("/api/v1/workflows/history", httpHandler.WorkflowHistory)
	mux.HandleFunc("/api/v1/workflows/delete", httpHandler.DeleteWorkflow)

	// Client and renewal routes
	mux.HandleFunc("/api/v1/clients", httpHandler.CreateClient)
	mux.HandleFunc("/api/v1/clients/get", httpHandler.GetClient)
	mux.HandleFunc("/api/v1/clients/extend", httpHandler.ExtendService)
	mux.HandleFunc("/api/v1/clients/expiring", httpHandler.ExpiringClients)
	mux.HandleFunc("/api/v1/clients/payments", httpHandler.ListPayments)

	// Contract routes
	mux.HandleFunc("/api/v1/contracts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListContracts(w, r)
		case http.MethodPost:
			httpHandler.CreateContract(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/contracts/get", httpHandler.GetContract)
	mux.HandleFunc("/api/v1/contracts/transition", httpHandler.TransitionContract)
	mux.HandleFunc("/api/v1/contracts/history", httpHandler.ContractHistory)
	mux.HandleFunc("/api/v1/contracts/send", httpHandler.SendContract)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Drain in-flight notification deliveries before closing connections
	dispatcher.Close()

	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			log.Error().Err(err).Msg("NATS drain failed")
		}
	}

	log.Info().Msg("Server stopped")
}
