package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bullion/internal/audit"
	auditsink "bullion/internal/audit/sink"
	complianceadapters "bullion/internal/compliance/adapters"
	compliancehandler "bullion/internal/compliance/handler"
	compliancemetrics "bullion/internal/compliance/metrics"
	complianceservice "bullion/internal/compliance/service"
	fixinghandler "bullion/internal/fixing/handler"
	fixingmetrics "bullion/internal/fixing/metrics"
	fixingservice "bullion/internal/fixing/service"
	"bullion/internal/operations"
	operationshandler "bullion/internal/operations/handler"
	operationsmetrics "bullion/internal/operations/metrics"
	operationsservice "bullion/internal/operations/service"
	"bullion/internal/platform/config"
	"bullion/internal/platform/httpserver"
	"bullion/internal/platform/logger"
	"bullion/internal/platform/metrics"
	pricinghandler "bullion/internal/pricing/handler"
	"bullion/internal/reports"
	reportshandler "bullion/internal/reports/handler"
	httptransport "bullion/internal/transport/http"
)

// main loads configuration, wires the desk services and serves HTTP until
// SIGINT or SIGTERM. Business logic lives in the internal service packages.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("bullion stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("bullion stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	prices, err := newResolver(cfg.Pricing, infra, log)
	if err != nil {
		return err
	}

	auditor := audit.NewPublisher()

	fixing := fixingservice.New(infra.backend, prices, fixingservice.Config{
		RenewalMonths:  cfg.Fixing.RenewalMonths,
		NearExpiryDays: cfg.Fixing.NearExpiryDays,
	},
		fixingservice.WithLogger(log),
		fixingservice.WithMetrics(fixingmetrics.New()),
		fixingservice.WithAuditPublisher(auditor),
	)

	gate, err := newComplianceGate(cfg, infra, auditor, log)
	if err != nil {
		return err
	}

	ops := operationsservice.New(infra.backend, gate, operations.HoldingPolicy{
		DefaultDays:        cfg.Compliance.HoldingDays,
		HighValueDays:      cfg.Compliance.HighValueDays,
		HighValueThreshold: cfg.Compliance.HighValueThreshold,
	},
		operationsservice.WithLogger(log),
		operationsservice.WithMetrics(operationsmetrics.New()),
		operationsservice.WithAuditPublisher(auditor),
		operationsservice.WithPriceSource(prices),
	)

	dashboard := reports.New(infra.backend, fixing, reports.WithLogger(log))

	router := httptransport.NewRouter(httptransport.Router{
		Logger:  log,
		Metrics: metrics.New(),
		Checks:  infra.healthChecks(),
		Limiter: newLimiter(cfg.Server.RateLimitPerMinute),
	},
		pricinghandler.New(prices, log),
		fixinghandler.New(fixing, log),
		compliancehandler.New(gate, log),
		operationshandler.New(ops, log),
		reportshandler.New(dashboard, log),
	)

	scheduler, err := newScheduler(cfg.Fixing.SweepSchedule, fixing, log)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	var sink audit.Sink = audit.LogSink{Logger: log}
	if infra.kafka != nil {
		sink = auditsink.NewKafka(infra.kafka, cfg.Kafka.AuditTopic)
	}
	relay := audit.NewWorker(infra.backend.Stores().Audit, sink, audit.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server.Addr, router), log, cfg.Server.ShutdownTimeout)
	})
	return g.Wait()
}

func newComplianceGate(cfg config.Config, infra *infra, auditor *audit.Publisher, log *slog.Logger) (*complianceservice.Service, error) {
	watchlist, err := complianceadapters.LoadWatchlist(cfg.Compliance.WatchlistFile)
	if err != nil {
		return nil, err
	}
	registry, err := complianceadapters.LoadRegistry(cfg.Compliance.RegistryFile)
	if err != nil {
		return nil, err
	}
	opts := []complianceservice.Option{
		complianceservice.WithLogger(log),
		complianceservice.WithMetrics(compliancemetrics.New()),
		complianceservice.WithAuditPublisher(auditor),
		complianceservice.WithRegistry(registry),
		complianceservice.WithDocumentGenerator(complianceadapters.NewPDFProfiles(cfg.Compliance.DocumentDir)),
		complianceservice.WithDefaultCeiling(cfg.Compliance.CashCeiling),
	}
	if infra.kafka != nil {
		opts = append(opts, complianceservice.WithSubmissionPublisher(
			complianceadapters.NewKafkaRegulator(infra.kafka, cfg.Kafka.RegulatoryTopic)))
	}
	policy, err := compliancePolicy(cfg.Compliance)
	if err != nil {
		return nil, err
	}
	return complianceservice.New(infra.backend, watchlist, policy, opts...), nil
}
