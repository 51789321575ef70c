package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrops-br/cassandra-products-api/internal/app/service"
	"github.com/mrops-br/cassandra-products-api/internal/domain"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/cassandra"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/config"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/http"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/http/handler"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/repository/memory"
	"github.com/mrops-br/cassandra-products-api/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	telem, err := telemetry.NewTelemetry(ctx, &cfg.OTLP, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Flush telemetry last so shutdown logs and spans are exported
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telem.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	// Get tracer, meter, and logger instances
	tracer := telem.TracerProvider.Tracer("products-api")
	meter := telem.MeterProvider.Meter("products-api")
	logger := telem.Logger

	logger.Info("Starting Products API",
		slog.String("repository", cfg.Repository.Driver),
	)

	// Initialize repository (dependency injection)
	repo, closeRepo, err := openRepository(ctx, cfg, tracer, meter, logger)
	if err != nil {
		logger.Error("Failed to open product repository", slog.String("error", err.Error()))
		return err
	}
	defer closeRepo()

	// Initialize service, handler and HTTP server
	productService := service.NewProductService(repo, tracer, meter, logger)
	productHandler := handler.NewProductHandler(productService, logger)
	server := http.NewServer(&cfg.Server, productHandler, logger, telem.MeterProvider)

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for a signal or a server failure
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", slog.String("error", err.Error()))
			return err
		}
	}

	// Drain in-flight requests before the repository is closed
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", slog.String("error", err.Error()))
	}

	logger.Info("Server stopped")
	return nil
}

// openRepository connects the configured product store. The returned func
// releases it.
func openRepository(
	ctx context.Context,
	cfg *config.Config,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
) (domain.ProductRepository, func(), error) {
	if cfg.Repository.Driver == config.DriverMemory {
		return memory.NewProductRepository(tracer, logger), func() {}, nil
	}

	session, err := cassandra.NewSession(&cfg.Cassandra, logger, meter)
	if err != nil {
		return nil, nil, err
	}

	// Fail fast when the cluster is unreachable
	versionCtx, cancel := context.WithTimeout(ctx, cfg.Cassandra.Timeout)
	defer cancel()
	version, err := session.ReleaseVersion(versionCtx)
	if err != nil {
		session.Close()
		return nil, nil, fmt.Errorf("cassandra health check: %w", err)
	}
	dao, err := cassandra.NewInventoryMapper(session, tracer, logger).ProductDAO(cfg.Cassandra.Keyspace)
	if err != nil {
		session.Close()
		return nil, nil, err
	}

	logger.Info("Connected to Cassandra",
		slog.String("release_version", version),
		slog.Any("hosts", cfg.Cassandra.Hosts),
		slog.String("keyspace", dao.Keyspace()),
	)

	return dao, session.Close, nil
}
