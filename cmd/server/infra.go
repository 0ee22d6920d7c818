package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"bullion/internal/platform/config"
	"bullion/internal/platform/kafka"
	platformredis "bullion/internal/platform/redis"
	"bullion/internal/pricing"
	"bullion/internal/pricing/cache"
	pricingmetrics "bullion/internal/pricing/metrics"
	"bullion/internal/pricing/providers"
	pricingservice "bullion/internal/pricing/service"
	"bullion/internal/pricing/store"
	"bullion/internal/storage"
	"bullion/internal/storage/memory"
	"bullion/internal/storage/postgres"
	httptransport "bullion/internal/transport/http"
)

// infra holds the external resources. Every field but backend and the price
// stores is optional and nil when not configured.
type infra struct {
	backend storage.Backend
	history pricing.HistoryStore
	cache   pricing.Cache

	db    *sql.DB
	redis *platformredis.Client
	kafka *kafka.Producer
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}
	ok := false
	defer func() {
		if !ok {
			in.Close()
		}
	}()

	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		in.db = db
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if cfg.Database.MigrateOnStart {
			if err := postgres.Migrate(db); err != nil {
				return nil, err
			}
		}
		in.backend = postgres.New(db)
		in.history = store.NewPostgresHistory(db)
		log.Info("using postgres storage")
	} else {
		in.backend = memory.New()
		in.history = store.NewInMemoryHistory()
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		in.cache = cache.NewRedisCache(rc.Client)
		log.Info("using redis price cache")
	} else {
		in.cache = cache.NewMemoryCache(cfg.Pricing.CacheTTL, 2*cfg.Pricing.CacheTTL)
	}

	producer, err := kafka.New(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if producer != nil {
		in.kafka = producer
		err := producer.EnsureTopics(ctx, int32(cfg.Kafka.Partitions), int16(cfg.Kafka.Replication),
			cfg.Kafka.RegulatoryTopic, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		log.Info("kafka producer ready", "brokers", cfg.Kafka.Brokers)
	} else {
		log.Warn("KAFKA_BROKERS not set, regulatory submissions disabled and audit events go to the log")
	}

	ok = true
	return in, nil
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["database"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.kafka != nil {
		checks["kafka"] = in.kafka.Ping
	}
	return checks
}

func (in *infra) Close() {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}

func newResolver(cfg config.Pricing, in *infra, log *slog.Logger) (*pricingservice.Resolver, error) {
	tables, err := pricing.LoadTables(cfg.TablesFile)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: cfg.ProviderTimeout}
	primary := providers.NewHTTPProvider(providerConfig(cfg.Primary, cfg), client)
	var backup pricing.SpotProvider
	if cfg.Backup.Endpoint != "" {
		backup = providers.NewHTTPProvider(providerConfig(cfg.Backup, cfg), client)
	}
	return pricingservice.New(primary, backup, in.cache, in.history, pricingservice.Config{
		CacheTTL:        cfg.CacheTTL,
		ProviderTimeout: cfg.ProviderTimeout,
		BaseCurrency:    cfg.BaseCurrency,
		Tables:          tables,
	},
		pricingservice.WithLogger(log),
		pricingservice.WithMetrics(pricingmetrics.New()),
		pricingservice.WithTracer(otel.Tracer("bullion/pricing")),
	), nil
}

func providerConfig(p config.Provider, cfg config.Pricing) providers.HTTPConfig {
	return providers.HTTPConfig{
		Name:          p.Name,
		Endpoint:      p.Endpoint,
		APIKey:        p.APIKey,
		Timeout:       cfg.ProviderTimeout,
		RatePerSecond: p.RatePerSecond,
		Burst:         1,
		DirectRates:   p.DirectRates,
	}
}
