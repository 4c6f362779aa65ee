package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/accounter/internal/adapter/eventlog/jetstream"
	"github.com/iho/accounter/internal/adapter/eventlog/memlog"
	"github.com/iho/accounter/internal/adapter/eventlog/redisstream"
	httpAdapter "github.com/iho/accounter/internal/adapter/http"
	"github.com/iho/accounter/internal/adapter/http/handler"
	"github.com/iho/accounter/internal/adapter/http/middleware"
	badgerRepo "github.com/iho/accounter/internal/adapter/repository/badger"
	redisRepo "github.com/iho/accounter/internal/adapter/repository/redis"
	infrabadger "github.com/iho/accounter/internal/infrastructure/badger"
	"github.com/iho/accounter/internal/infrastructure/config"
	"github.com/iho/accounter/internal/infrastructure/consumer"
	"github.com/iho/accounter/internal/infrastructure/metrics"
	infranats "github.com/iho/accounter/internal/infrastructure/nats"
	infraredis "github.com/iho/accounter/internal/infrastructure/redis"
	"github.com/iho/accounter/internal/usecase"
	"github.com/iho/accounter/pkg/shutdownqueue"
)

const (
	rateLimitCleanupInterval = time.Minute
	rateLimitMaxIdle         = 10 * time.Minute
)

// partitionedLog is what every log backend provides.
type partitionedLog interface {
	usecase.LogPublisher
	usecase.LogSource
}

// app owns every long-lived component of the server process.
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	server      *http.Server
	consumers   *consumer.Manager
	rateLimiter *middleware.RateLimiter
	queue       *shutdownqueue.Queue
}

// newApp opens the store and the log, then wires use cases and transport.
// Resources join the shutdown queue as soon as they are opened.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{cfg: cfg, logger: logger, queue: shutdownqueue.New()}

	db, err := infrabadger.Open(infrabadger.Config{
		Dir:        cfg.StoreDir,
		InMemory:   cfg.StoreInMemory,
		SyncWrites: cfg.StoreSyncWrites,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	a.queue.Add("store", func(ctx context.Context) error {
		return infrabadger.Close(ctx, db)
	})
	logger.Info().Str("dir", cfg.StoreDir).Bool("in_memory", cfg.StoreInMemory).Msg("store opened")

	checks := []handler.HealthCheck{{Name: "store", Check: storeCheck(db)}}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = infraredis.NewClient(ctx, infraredis.Config{URL: cfg.RedisURL})
		if err != nil {
			a.abort()
			return nil, err
		}
		a.queue.Add("redis", func(context.Context) error { return redisClient.Close() })
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		logger.Info().Msg("connected to redis")
	}

	log, logChecks, err := a.openLog(ctx, redisClient, m)
	if err != nil {
		a.abort()
		return nil, err
	}
	checks = append(checks, logChecks...)

	// Repositories
	txManager := badgerRepo.NewTxManager(db)
	balanceRepo := badgerRepo.NewBalanceRepository(db)
	markerRepo := badgerRepo.NewPlanMarkerRepository(db)
	offsetRepo := badgerRepo.NewOffsetRepository(db)
	retrier := badgerRepo.NewRetrier(logger, m)

	// Use cases
	balanceUC := usecase.NewBalanceUseCase(txManager, balanceRepo, markerRepo, retrier, logger, m)
	registrationUC := usecase.NewRegistrationUseCase(log, balanceRepo, markerRepo, badgerRepo.NewULIDGenerator(), logger, m)
	gate := usecase.NewConsistencyGate(offsetRepo, cfg.LogPartitions, m)
	ledgerUC := usecase.NewLedgerUseCase(registrationUC, gate, balanceRepo, markerRepo, offsetRepo, m)

	a.consumers = consumer.NewManager(consumer.Config{
		Source:              log,
		Offsets:             offsetRepo,
		Handler:             balanceUC,
		Logger:              logger,
		Metrics:             m,
		Partitions:          cfg.LogPartitions,
		PartitionsPerWorker: cfg.PartitionsPerWorker,
		PollTimeout:         cfg.PollTimeout,
		RestartDelay:        cfg.WorkerRestartDelay,
		SupervisorInterval:  cfg.SupervisorInterval,
	})

	routerCfg := httpAdapter.RouterConfig{
		LedgerHandler:  handler.NewLedgerHandler(ledgerUC),
		AccountHandler: handler.NewAccountHandler(ledgerUC),
		AdminHandler:   handler.NewAdminHandler(ledgerUC),
		HealthHandler:  handler.NewHealthHandler(checks...),
		IdempotencyTTL: cfg.IdempotencyTTL,
		MetricsHandler: promhttp.Handler(),
		Logger:         logger,
	}
	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient, "")
	}
	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
		routerCfg.RateLimiter = a.rateLimiter
	}

	a.server = &http.Server{
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return a, nil
}

// openLog connects the configured log backend and registers its shutdown.
func (a *app) openLog(ctx context.Context, redisClient *goredis.Client, m *metrics.Metrics) (partitionedLog, []handler.HealthCheck, error) {
	cfg := a.cfg

	switch cfg.LogBackend {
	case config.LogBackendMemory:
		log := memlog.New(cfg.LogPartitions, cfg.PollBatchSize)
		a.queue.Add("log", func(context.Context) error { return log.Close() })
		a.logger.Warn().Msg("using in-memory log; entries do not survive a restart")
		return log, nil, nil

	case config.LogBackendRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis log backend needs REDIS_URL")
		}
		log := redisstream.New(redisstream.Config{
			Client:     redisClient,
			Prefix:     cfg.RedisStreamPrefix,
			Partitions: cfg.LogPartitions,
			BatchSize:  int64(cfg.PollBatchSize),
			Metrics:    m,
		})
		return log, nil, nil

	case config.LogBackendNATS:
		client, err := infranats.NewClient(infranats.Config{
			URL:           cfg.NATSURL,
			MaxReconnects: -1,
			Logger:        a.logger,
		})
		if err != nil {
			return nil, nil, err
		}
		a.queue.Add("nats", func(context.Context) error { return client.Close() })

		log := jetstream.New(jetstream.Config{
			JS:         client.JS,
			Prefix:     cfg.NATSStreamPrefix,
			Partitions: cfg.LogPartitions,
			BatchSize:  cfg.PollBatchSize,
			Replicas:   cfg.NATSReplicas,
			Metrics:    m,
		})
		if err := log.EnsureStreams(ctx); err != nil {
			return nil, nil, err
		}
		a.logger.Info().Str("url", cfg.NATSURL).Int32("partitions", cfg.LogPartitions).Msg("jetstream streams ready")

		check := handler.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !client.Conn.IsConnected() {
				return fmt.Errorf("nats connection %s", client.Conn.Status())
			}
			return nil
		}}
		return log, []handler.HealthCheck{check}, nil

	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", cfg.LogBackend)
	}
}

// Run serves HTTP on ln and runs the consumer pool until ctx ends or either
// fails, then drains the shutdown queue: HTTP, consumers, log, store.
func (a *app) Run(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	consumersDone := make(chan struct{})
	g.Go(func() error {
		defer close(consumersDone)
		return a.consumers.Run(consumerCtx)
	})
	a.queue.Add("consumers", func(ctx context.Context) error {
		stopConsumers()
		select {
		case <-consumersDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	g.Go(func() error {
		a.logger.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	a.queue.Add("http", a.server.Shutdown)

	if a.rateLimiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(rateLimitCleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.rateLimiter.Cleanup(rateLimitMaxIdle)
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
		defer cancel()
		return a.queue.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// abort releases whatever newApp opened before failing.
func (a *app) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := a.queue.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("cleanup after failed start")
	}
}

func storeCheck(db *badgerdb.DB) func(context.Context) error {
	return func(context.Context) error {
		if db.IsClosed() {
			return errors.New("store is closed")
		}
		return nil
	}
}
