package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/fire-detection-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/fire-detection-service/internal/adapter/kafka"
	"github.com/couchcryptid/fire-detection-service/internal/adapter/mapbox"
	"github.com/couchcryptid/fire-detection-service/internal/adapter/memqueue"
	"github.com/couchcryptid/fire-detection-service/internal/adapter/postgres"
	"github.com/couchcryptid/fire-detection-service/internal/config"
	"github.com/couchcryptid/fire-detection-service/internal/detect"
	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	"github.com/couchcryptid/fire-detection-service/internal/observability"
	"github.com/couchcryptid/fire-detection-service/internal/pipeline"
)

// queue is what the service enqueues into and the pipeline drains.
type queue interface {
	job.Enqueuer
	pipeline.BatchExtractor
}

// readiness reports ready only when every check passes.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	// A missing .env is fine; the environment is the source of truth.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Error("close error", "error", err)
			}
		}
	}()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	engineOpts := []detect.Option{detect.WithLatency(cfg.SimulatedLatency)}
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		var geocoder domain.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		engineOpts = append(engineOpts, detect.WithGeocoder(geocoder))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	store, storeReady, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open job store", "error", err)
		os.Exit(1)
	}
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}

	q, qClosers := openQueue(cfg, logger)
	closers = append(closers, qClosers...)

	var pipelineOpts []pipeline.Option
	if cfg.KafkaResultTopic != "" {
		results := kafkaadapter.NewResultWriter(cfg, logger)
		closers = append(closers, results)
		pipelineOpts = append(pipelineOpts, pipeline.WithPublisher(results))
		logger.Info("publishing results", "topic", cfg.KafkaResultTopic)
	}

	engine := detect.NewEngine(logger, engineOpts...)
	svc := job.NewService(store, q, nil, logger, metrics)
	p := pipeline.New(q, engine, store, logger, metrics, cfg.BatchSize, pipelineOpts...)

	ready := readiness{p}
	if storeReady != nil {
		ready = append(ready, storeReady)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, ready, logger)

	// Start HTTP server.
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start detection pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
}

// openStore returns the configured job store and, for external stores, a
// readiness check for it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (job.Store, sharedobs.ReadinessChecker, error) {
	if cfg.StoreBackend != config.BackendPostgres {
		logger.Info("using in-memory job store", "ttl", cfg.JobTTL)
		return job.NewMemoryStore(cfg.JobTTL, nil), nil, nil
	}

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	store := postgres.NewStore(db, cfg.JobTTL, nil)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate job store: %w", err)
	}
	go sweepExpired(ctx, store, clockwork.NewRealClock(), cfg.JobTTL, logger)

	logger.Info("using postgres job store", "ttl", cfg.JobTTL)
	return &closingStore{Store: store, close: db.Close}, store, nil
}

// closingStore ties the database handle's lifetime to the store.
type closingStore struct {
	*postgres.Store
	close func() error
}

func (s *closingStore) Close() error { return s.close() }

// expirer deletes jobs whose TTL has passed.
type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// sweepExpired deletes expired jobs once per TTL until ctx is done.
func sweepExpired(ctx context.Context, store expirer, clock clockwork.Clock, ttl time.Duration, logger *slog.Logger) {
	ticker := clock.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("expired job sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired jobs deleted", "count", n)
			}
		}
	}
}

func openQueue(cfg *config.Config, logger *slog.Logger) (queue, []io.Closer) {
	if cfg.QueueBackend != config.BackendKafka {
		logger.Info("using in-memory job queue", "capacity", cfg.QueueCapacity)
		return memqueue.New(cfg.QueueCapacity), nil
	}

	writer := kafkaadapter.NewRequestWriter(cfg, logger)
	reader := kafkaadapter.NewReader(cfg, logger)
	logger.Info("using kafka job queue", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaRequestTopic)
	return kafkaQueue{RequestWriter: writer, Reader: reader}, []io.Closer{reader, writer}
}

// kafkaQueue enqueues through the request topic and consumes it back.
type kafkaQueue struct {
	*kafkaadapter.RequestWriter
	*kafkaadapter.Reader
}
