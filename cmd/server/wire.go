package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"idverifier/internal/events"
	"idverifier/internal/events/kafka"
	"idverifier/internal/ledger"
	"idverifier/internal/ledger/memory"
	ledgerpostgres "idverifier/internal/ledger/postgres"
	ledgerredis "idverifier/internal/ledger/redis"
	"idverifier/internal/ledger/sweeper"
	"idverifier/internal/platform/config"
	"idverifier/internal/platform/postgres"
	platformredis "idverifier/internal/platform/redis"
)

// backend is the ledger host plus whatever the process must check and close.
type backend struct {
	host    ledger.Host
	evictor sweeper.Evictor
	health  func(ctx context.Context) error
	close   func()
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger, sink ledger.EventSink) (*backend, error) {
	retention := cfg.Registry.Retention
	switch cfg.Store {
	case config.StoreRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, errors.New("redis store selected but REDIS_URL is empty")
		}
		host := ledgerredis.New(client.Client,
			ledgerredis.WithInitialTTL(retention),
			ledgerredis.WithEventSink(sink),
			ledgerredis.WithLogger(log),
		)
		// Redis expires keys itself; no sweeper.
		return &backend{
			host:   host,
			health: client.Health,
			close:  func() { _ = client.Close() },
		}, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		host := ledgerpostgres.New(db,
			ledgerpostgres.WithInitialTTL(retention),
			ledgerpostgres.WithEventSink(sink),
			ledgerpostgres.WithLogger(log),
		)
		if err := host.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{
			host:    host,
			evictor: host,
			health:  db.PingContext,
			close:   func() { _ = db.Close() },
		}, nil

	default:
		host := memory.New(
			memory.WithInitialTTL(retention),
			memory.WithEventSink(sink),
			memory.WithLogger(log),
		)
		evict := sweeper.EvictFunc(func(context.Context) (int64, error) {
			return int64(host.Evict()), nil
		})
		return &backend{
			host:    host,
			evictor: evict,
			health:  func(context.Context) error { return nil },
			close:   func() {},
		}, nil
	}
}

// buildEventSink always logs events and, when brokers are configured, also
// publishes them to Kafka behind a circuit breaker.
func buildEventSink(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (ledger.EventSink, func(), error) {
	sinks := events.Fanout{events.NewLogSink(log)}
	if len(cfg.Kafka.Brokers) == 0 {
		return sinks, func() {}, nil
	}

	pub, err := kafka.New(cfg.Kafka.Brokers,
		kafka.WithTopic(cfg.Kafka.Topic),
		kafka.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := pub.EnsureTopic(ctx, 1, 1); err != nil {
		log.Warn("kafka topic check failed, relying on broker auto-create",
			"topic", pub.Topic(),
			"error", err,
		)
	}
	guarded := events.NewGuardedSink(pub,
		events.NewCircuitBreaker(cfg.Kafka.BreakerThreshold, cfg.Kafka.BreakerCooldown),
		events.WithMetrics(events.NewMetrics(reg)),
		events.WithLogger(log),
	)
	return append(sinks, guarded), pub.Close, nil
}
