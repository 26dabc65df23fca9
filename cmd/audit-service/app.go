package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"shopstream/internal/audit"
	"shopstream/internal/config"
	"shopstream/internal/constants"
	"shopstream/internal/logger"
	"shopstream/internal/stream"
	"shopstream/pkg/bootstrap"
	"shopstream/pkg/health"
	"shopstream/pkg/logging"
	"shopstream/pkg/metrics"
	"shopstream/pkg/migrations"
	"shopstream/pkg/retry"
	"shopstream/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	rdb            *redis.Client
	mongoClient    *mongo.Client
	consumer       *stream.Consumer
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("audit-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initConsumer(ctx); err != nil {
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "audit-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterStreamMetrics()
	metrics.RegisterSinkMetrics()

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.rdb = rdb

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	if mongoClient == nil {
		return fmt.Errorf("mongodb configuration is required for the audit sink")
	}
	a.mongoClient = mongoClient

	if a.Config.Database.RunMigrations {
		db := mongoClient.Database(a.Config.Database.MongoDB.Database)
		if err := migrations.EnsureAuditCollection(ctx, db); err != nil {
			return fmt.Errorf("failed to prepare audit collection: %w", err)
		}
		a.Logger.InfowCtx(ctx, "Audit collection indexes ensured")
	}

	return nil
}

func (a *App) initConsumer(ctx context.Context) error {
	db := a.mongoClient.Database(a.Config.Database.MongoDB.Database)
	repo := audit.NewRepository(db)
	handler := audit.NewHandler(repo, retryPolicy(a.Config.Stream.Retry), a.Logger)

	client := stream.NewRedisClient(a.rdb)
	deadLetter := stream.NewDeadLetter(client, a.Config.Stream.Consumer.DeadLetterStream, a.Logger)
	a.consumer = stream.NewConsumer(client, a.Config.Stream.Consumer, handler, deadLetter, a.Logger)

	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.rdb))
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	healthRegistry.Register(health.NewConsumerChecker("audit-consumer", a.consumer.Running))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if err := a.consumer.Start(); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.consumer.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "audit-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down audit service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.consumer != nil {
			a.consumer.Stop()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.rdb, nil, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}
