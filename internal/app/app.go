// Package app assembles the ledger components, their adapters and the
// dispatcher from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	agricultureService "crossledger/internal/agriculture/service"
	agricultureStore "crossledger/internal/agriculture/store"
	coordinatorService "crossledger/internal/coordinator/service"
	coordinatorStore "crossledger/internal/coordinator/store"
	healthcareService "crossledger/internal/healthcare/service"
	healthcareStore "crossledger/internal/healthcare/store"
	"crossledger/internal/ledger"
	"crossledger/internal/ledger/dispatch"
	docmemory "crossledger/internal/ledger/documents/memory"
	docredis "crossledger/internal/ledger/documents/redis"
	"crossledger/internal/ledger/outbox"
	submitterleveldb "crossledger/internal/ledger/submitter/leveldb"
	submittermemory "crossledger/internal/ledger/submitter/memory"
	submitterpostgres "crossledger/internal/ledger/submitter/postgres"
	tokenmemory "crossledger/internal/ledger/tokens/memory"
	tokenredis "crossledger/internal/ledger/tokens/redis"
	"crossledger/internal/platform/config"
	"crossledger/internal/platform/metrics"
	"crossledger/internal/platform/ratelimit"
	"crossledger/internal/platform/redis"
	registryService "crossledger/internal/registry/service"
	registryStore "crossledger/internal/registry/store"
	sustainabilityService "crossledger/internal/sustainability/service"
	sustainabilityStore "crossledger/internal/sustainability/store"
	httptransport "crossledger/internal/transport/http"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/audit/publishers/compliance"
	auditkafka "crossledger/pkg/platform/audit/store/kafka"
	auditmemory "crossledger/pkg/platform/audit/store/memory"
	auditpostgres "crossledger/pkg/platform/audit/store/postgres"
	"crossledger/pkg/platform/circuit"
	"crossledger/pkg/platform/idgen"
)

// App is a fully wired ledger process.
type App struct {
	Registry       *registryService.Service
	Coordinator    *coordinatorService.Service
	Agriculture    *agricultureService.Service
	Healthcare     *healthcareService.Service
	Sustainability *sustainabilityService.Service

	Outbox     *outbox.InMemory
	Dispatcher *dispatch.Dispatcher
	Metrics    *metrics.Metrics
	Prometheus *prometheus.Registry
	Issuer     *authz.Issuer
	Verifier   *authz.Verifier

	limiter *ratelimit.Window
	health  map[string]httptransport.HealthCheck
	closers []func() error
	logger  *slog.Logger
}

type adapters struct {
	submitter ledger.Submitter
	notary    dispatch.Notary
	documents ledger.DocumentStore
	minter    ledger.TokenMinter
}

// New builds the process from cfg. Close releases every opened adapter.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Outbox:     outbox.NewInMemory(),
		Metrics:    metrics.New(reg),
		Prometheus: reg,
		Issuer:     authz.NewIssuer([]byte(cfg.Server.CapabilityKey)),
		Verifier:   authz.NewVerifier([]byte(cfg.Server.CapabilityKey)),
		health:     map[string]httptransport.HealthCheck{},
		logger:     logger,
	}

	if cfg.Server.RateLimit > 0 {
		a.limiter = ratelimit.NewWindow(cfg.Server.RateLimit, cfg.Server.RateWindow)
	}

	ad, err := a.openAdapters(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	emitter := func(m domain.Module) *ledger.Emitter {
		return ledger.NewEmitter(m, idgen.New(string(m)), a.Outbox)
	}
	log := func(component string) *slog.Logger {
		return logger.With("component", component)
	}

	a.Registry = registryService.New(registryStore.NewInMemory(), emitter(domain.ModuleRegistry),
		registryService.WithLogger(log("registry")),
		registryService.WithMetrics(a.Metrics),
	)
	a.Coordinator = coordinatorService.New(coordinatorStore.NewInMemory(), a.Registry, emitter(domain.ModuleCoordinator),
		coordinatorService.WithLogger(log("coordinator")),
		coordinatorService.WithMetrics(a.Metrics),
	)
	a.Agriculture = agricultureService.New(
		agricultureStore.NewHarvests(), agricultureStore.NewContracts(), agricultureStore.NewPolicies(),
		emitter(domain.ModuleAgriculture),
		agricultureService.WithLogger(log("agriculture")),
		agricultureService.WithMetrics(a.Metrics),
	)
	a.Healthcare = healthcareService.New(
		healthcareStore.NewPolicies(), healthcareStore.NewVisits(), healthcareStore.NewCurrentPolicies(),
		emitter(domain.ModuleHealthcare),
		healthcareService.WithLogger(log("healthcare")),
		healthcareService.WithMetrics(a.Metrics),
		healthcareService.WithDocumentStore(ad.documents),
	)
	a.Sustainability = sustainabilityService.New(sustainabilityStore.NewCredits(), sustainabilityStore.NewAccounts(),
		emitter(domain.ModuleSustainability),
		sustainabilityService.WithLogger(log("sustainability")),
		sustainabilityService.WithMetrics(a.Metrics),
	)

	a.Dispatcher = dispatch.New(a.Outbox, ad.submitter, ad.notary,
		dispatch.WithMinter(ad.minter),
		dispatch.WithLogger(log("dispatch")),
		dispatch.WithMetrics(a.Metrics),
		dispatch.WithBatchSize(cfg.Dispatcher.BatchSize),
		dispatch.WithInterval(cfg.Dispatcher.Interval),
		dispatch.WithBreaker(circuit.New("ledger-dispatch",
			circuit.WithFailureThreshold(cfg.Dispatcher.FailureThreshold),
			circuit.WithCooldown(cfg.Dispatcher.Cooldown),
		)),
	)
	return a, nil
}

func (a *App) openAdapters(ctx context.Context, cfg config.Config) (adapters, error) {
	var ad adapters

	var rdb *redis.Client
	if cfg.Adapters.Documents == config.AdapterRedis || cfg.Adapters.Tokens == config.AdapterRedis {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return ad, err
		}
		rdb = client
		a.closers = append(a.closers, rdb.Close)
		a.health["redis"] = rdb.Health
	}

	var pool *pgxpool.Pool
	if cfg.Adapters.Submitter == config.AdapterPostgres || cfg.Adapters.Notary == config.AdapterPostgres {
		p, err := submitterpostgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return ad, err
		}
		pool = p
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.health["postgres"] = pool.Ping
	}

	switch cfg.Adapters.Submitter {
	case config.AdapterLevelDB:
		journal, err := submitterleveldb.Open(cfg.LevelDB.Path)
		if err != nil {
			return ad, err
		}
		a.closers = append(a.closers, journal.Close)
		ad.submitter = journal
	case config.AdapterPostgres:
		journal := submitterpostgres.New(pool)
		if err := journal.Migrate(ctx); err != nil {
			return ad, err
		}
		ad.submitter = journal
	default:
		ad.submitter = submittermemory.New()
	}

	var notary dispatch.Notary = auditmemory.NewInMemoryStore()
	switch cfg.Adapters.Notary {
	case config.AdapterPostgres:
		store := auditpostgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			return ad, err
		}
		notary = store
	case config.AdapterKafka:
		client, err := auditkafka.Dial(cfg.Kafka.Brokers)
		if err != nil {
			return ad, err
		}
		a.closers = append(a.closers, func() error { client.Close(); return nil })
		a.health["kafka"] = client.Ping
		store := auditkafka.New(client, auditkafka.WithTopicPrefix(cfg.Kafka.TopicPrefix+"."))
		topics := []string{
			string(domain.ModuleRegistry), string(domain.ModuleCoordinator), string(domain.ModuleAgriculture),
			string(domain.ModuleHealthcare), string(domain.ModuleSustainability),
		}
		if err := store.EnsureTopics(ctx, cfg.Kafka.ReplicationFactor, topics...); err != nil {
			return ad, err
		}
		notary = store
	}
	ad.notary = compliance.New(notary, compliance.WithLogger(a.logger))

	if cfg.Adapters.Documents == config.AdapterRedis {
		ad.documents = docredis.New(rdb)
	} else {
		ad.documents = docmemory.New()
	}
	if cfg.Adapters.Tokens == config.AdapterRedis {
		ad.minter = tokenredis.New(rdb)
	} else {
		ad.minter = tokenmemory.New()
	}
	return ad, nil
}

// Handler returns the HTTP surface for the process.
func (a *App) Handler() http.Handler {
	var limit func(http.Handler) http.Handler
	if a.limiter != nil {
		limit = ratelimit.PerCaller(a.limiter, a.logger)
	}
	return httptransport.NewRouter(httptransport.Deps{
		Registry:       a.Registry,
		Coordinator:    a.Coordinator,
		Agriculture:    a.Agriculture,
		Healthcare:     a.Healthcare,
		Sustainability: a.Sustainability,
		Capabilities:   a.Verifier,
		RateLimit:      limit,
		Gatherer:       a.Prometheus,
		Health:         a.health,
		Logger:         a.logger,
	})
}

// SweepRateLimits forgets callers idle for a full window.
func (a *App) SweepRateLimits(now time.Time) {
	if a.limiter != nil {
		a.limiter.Sweep(now)
	}
}

// Close releases adapters in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close adapters: %w", errors.Join(errs...))
	}
	return nil
}
