package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/infrastructure/config"
	"callwatch-service/internal/infrastructure/persistence"
	"callwatch-service/internal/interface/httpapi"
	"callwatch-service/internal/interface/notify"
	"callwatch-service/internal/interface/portal"
	callRepo "callwatch-service/internal/interface/repository"
	"callwatch-service/internal/usecase"
	"callwatch-service/pkg/logger"
	"callwatch-service/pkg/metrics"
	"callwatch-service/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Create logger
	log := logger.NewLogger()
	defer log.Sync()
	log.Info("Starting Callwatch Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, db, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	gormDB, err := gorm.Open(postgres.Open(cfg.PostgresURI), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	if err := gormDB.AutoMigrate(&entity.ClientAssociation{}, &entity.TicketTopic{}); err != nil {
		log.Fatal("Failed to migrate PostgreSQL schema", "error", err)
	}

	// Set up repositories
	historyRepo := callRepo.NewMongoHistoryRepository(db)
	associationRepo := callRepo.NewGormAssociationRepository(gormDB)
	topicRepo := callRepo.NewGormTopicRepository(gormDB)

	// Metrics and events
	m := metrics.NewMetrics("callwatch")
	notifier := notify.NewLogNotifier(log, m)

	// Lifecycle store, seeded from persisted history
	store := usecase.NewCallLifecycle(historyRepo, notifier, log)
	if err := store.LoadPersisted(ctx); err != nil {
		log.Error("Failed to load persisted history", "error", err)
	}

	// Portal session
	extractor := utils.NewCallExtractor(cfg.PortalBaseURL, log)
	client, err := portal.NewClient(cfg.PortalBaseURL, cfg.PortalUsername, cfg.PortalPassword, cfg.RequestTimeout, log)
	if err != nil {
		log.Fatal("Failed to create portal client", "error", err)
	}

	bulkFetcher := portal.NewBulkFetcher(client, extractor, m, log, cfg.HistoryPageCap, cfg.HistoryBatchSize)
	poller := portal.NewPoller(client, extractor, store, associationRepo, notifier, m, log, cfg.PollInterval)

	draftSaver := usecase.NewDraftSaver(store, cfg.DraftSaveDelay, log)
	ticketCreator := usecase.NewTicketCreator(client, store, topicRepo, associationRepo, m, log)

	// Log in and reconcile server-side history before the live stream starts
	go func() {
		if err := client.Login(ctx); err != nil {
			log.Error("Initial portal login failed", "error", err)
			return
		}
		records, err := bulkFetcher.FetchAll(ctx, false, notifier.BulkProgress)
		if err != nil {
			log.Error("Initial history crawl failed", "error", err)
			return
		}
		store.ReconcileHistory(ctx, records)
	}()

	// Start portal polling in a goroutine
	go poller.StartPolling(ctx)

	// Set up HTTP server for the UI API and metrics
	mux := http.NewServeMux()
	api := httpapi.NewHandlers(store, draftSaver, ticketCreator, bulkFetcher, topicRepo, notifier, log)
	api.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Flush pending drafts before shutdown
	draftSaver.Flush(ctx)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop all goroutines

	// Disconnect from MongoDB
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Callwatch Service stopped")
}
