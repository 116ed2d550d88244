package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nik-maltcev/datatrace/internal/config"
	"github.com/nik-maltcev/datatrace/internal/monitoring"
	"github.com/nik-maltcev/datatrace/internal/resilience"
	"github.com/nik-maltcev/datatrace/internal/search"
	"github.com/nik-maltcev/datatrace/internal/source"
)

// engine bundles the wired-up search stack for the commands.
type engine struct {
	aggregator *search.Aggregator
	recovery   *search.RecoveryCoordinator
	collector  *monitoring.Collector
}

// sourceBuilder constructs one adapter from its config section.
type sourceBuilder struct {
	name  string
	cfg   config.SourceConfig
	build func(source.Config) (source.Source, error)
}

// buildEngine wires the registry, breakers, aggregator, and recovery
// coordinator from configuration. Sources without a configured token are
// skipped with a warning rather than failing startup; a configured-but-
// invalid source is a startup error.
func buildEngine(cfg *config.Config) (*engine, error) {
	registry := source.NewRegistry()

	builders := []sourceBuilder{
		{"dyxless", cfg.Dyxless, func(c source.Config) (source.Source, error) { return source.NewDyxless(c) }},
		{"itp", cfg.ITP, func(c source.Config) (source.Source, error) { return source.NewITP(c) }},
		{"leakosint", cfg.LeakOsint, func(c source.Config) (source.Source, error) { return source.NewLeakOsint(c) }},
		{"userbox", cfg.Userbox, func(c source.Config) (source.Source, error) { return source.NewUserbox(c) }},
		{"vektor", cfg.Vektor, func(c source.Config) (source.Source, error) { return source.NewVektor(c) }},
	}

	registered := 0
	for _, b := range builders {
		if b.cfg.Token == "" {
			zap.L().Warn("source has no token configured, skipping", zap.String("source", b.name))
			continue
		}
		src, err := b.build(source.Config{
			Token:    b.cfg.Token,
			BaseURL:  b.cfg.BaseURL,
			Timeout:  b.cfg.Timeout(),
			Priority: b.cfg.Priority,
			RPS:      b.cfg.RPS,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "build source %s", b.name)
		}
		registry.Register(src)
		if !b.cfg.Enabled {
			registry.SetEnabled(src.ID(), false)
		}
		registered++
	}
	if registered == 0 {
		return nil, eris.New("no sources configured; set at least one API token")
	}

	breakers := resilience.NewSourceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Search.BreakerFailureThreshold,
		ResetTimeout:     time.Duration(cfg.Search.BreakerResetTimeoutSecs) * time.Second,
		// Validation failures never reach the network; they must not
		// open the circuit.
		ShouldTrip: func(err error) bool {
			return source.KindOf(err) != source.KindValidation
		},
	})

	collector := monitoring.NewCollector()
	agg := search.New(registry, breakers, search.Options{
		Concurrency: cfg.Search.Concurrency,
		Recorder:    collector,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Search.RetryMaxAttempts,
			BaseDelay:      time.Duration(cfg.Search.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:       time.Duration(cfg.Search.RetryMaxDelayMs) * time.Millisecond,
			JitterFraction: cfg.Search.RetryJitterFraction,
		},
	})

	rec := search.NewRecoveryCoordinator(agg, search.RecoveryOptions{
		RetryDelay:      time.Duration(cfg.Recovery.RetryDelayMs) * time.Millisecond,
		DisableDegraded: cfg.Recovery.DisableDegraded,
	})

	return &engine{aggregator: agg, recovery: rec, collector: collector}, nil
}
