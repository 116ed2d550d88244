package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nik-maltcev/datatrace/internal/config"
	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/internal/resilience"
)

// Prober is the slice of the aggregator the checker needs.
type Prober interface {
	ProbeAll(ctx context.Context) []model.ProbeStatus
	BreakerSnapshots() map[string]resilience.Snapshot
}

// Checker runs periodic availability probes in the background and logs
// transitions, including breakers stuck open.
type Checker struct {
	prober Prober
	cfg    config.MonitoringConfig

	lastAvailable map[string]bool
}

// NewChecker creates a background availability checker.
func NewChecker(prober Prober, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		prober:        prober,
		cfg:           cfg,
		lastAvailable: make(map[string]bool),
	}
}

// Run starts the periodic probe loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.ProbeIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting availability checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("availability checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	statuses := c.prober.ProbeAll(ctx)

	available := 0
	for _, st := range statuses {
		if st.Available {
			available++
		}
		prev, seen := c.lastAvailable[st.SourceID]
		if seen && prev != st.Available {
			if st.Available {
				log.Info("source recovered", zap.String("source", st.SourceID))
			} else {
				log.Warn("source became unavailable", zap.String("source", st.SourceID))
			}
		}
		c.lastAvailable[st.SourceID] = st.Available
	}

	for id, snap := range c.prober.BreakerSnapshots() {
		if snap.IsOpen {
			log.Warn("circuit breaker open",
				zap.String("source", id),
				zap.Int("consecutive_failures", snap.ConsecutiveFailures),
				zap.Timep("reopen_not_before", snap.ReopenNotBefore),
			)
		}
	}

	log.Debug("availability check complete",
		zap.Int("sources", len(statuses)),
		zap.Int("available", available),
	)
}
