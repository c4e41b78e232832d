package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	app_payments "checkout/internal/app/payments"
	"checkout/internal/config"
	"checkout/internal/domain"
	http_payments "checkout/internal/handler/http/payments"
	kafka_handler "checkout/internal/handler/kafka"
	"checkout/internal/infrastructure/database"
	"checkout/internal/infrastructure/kafka"
	"checkout/internal/metrics"
	"checkout/internal/outbox"
	inbox_postgres "checkout/internal/repository/inbox_repo/postgres"
	outbox_postgres "checkout/internal/repository/outbox_repo/postgres"
	payment_postgres "checkout/internal/repository/payment_repo/postgres"
	"checkout/internal/stripe"
)

func main() {
	cfg, err := config.LoadPaymentsConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Payments service starting...")

	db := connectWithRetries(appLogger, cfg.DB)
	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.")
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	runMigrations(appLogger, cfg.MigrationsPath, cfg.DB.MigrationURL())

	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers, appLogger)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	paymentRepository := payment_postgres.NewPaymentRepository(db, appLogger)
	inboxRepository := inbox_postgres.NewInboxRepository(db, appLogger)
	outboxRepository := outbox_postgres.NewOutboxRepository(db, appLogger)

	gatewayClient := stripe.NewClient(cfg.StripeBaseURL, cfg.StripeSecretKey, cfg.StripeTimeout,
		appLogger.With(zap.String("component", "StripeClient")))

	paymentService := app_payments.NewPaymentService(paymentRepository, inboxRepository, gatewayClient, appLogger)

	consumerMetrics := metrics.NewConsumerMetrics()
	outboxMetrics := metrics.NewOutboxMetrics()

	outboxProcessor := outbox.NewProcessor(
		outboxRepository, kafkaProducer,
		cfg.OutboxPollInterval, cfg.OutboxPollTimeout,
		outboxMetrics, appLogger.With(zap.String("component", "OutboxProcessor")))

	orderCreatedHandler := kafka_handler.OrderCreatedHandler(paymentService, appLogger.With(zap.String("component", "OrderCreatedConsumer")))
	orderCreatedConsumer := kafka.NewConsumer(cfg.KafkaBrokers, domain.TopicOrderCreated, cfg.KafkaConsumerGroup, kafkaProducer, consumerMetrics, appLogger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	http_payments.RegisterRoutes(r, paymentService, cfg.JWTSecret, appLogger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orderCreatedConsumer.Run(gctx, orderCreatedHandler) })
	g.Go(func() error { return outboxProcessor.Run(gctx) })
	g.Go(func() error {
		appLogger.Info("Payments service listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down payments service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Fatal("Payments service exited with error", zap.Error(err))
	}
	appLogger.Info("Payments service stopped.")
}

func connectWithRetries(logger *zap.Logger, cfg config.DBConfig) *sql.DB {
	const maxRetries = 10
	const retryDelay = 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err := database.NewPostgresDB(cfg)
		if err == nil {
			logger.Info("Connected to PostgreSQL database")
			return db
		}
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil
}

func runMigrations(logger *zap.Logger, sourceURL, dbURL string) {
	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		logger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed")
}
