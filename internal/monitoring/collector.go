// Package monitoring tracks per-source health: rolling call statistics
// from the aggregator plus a background availability checker.
package monitoring

import (
	"sync"

	"github.com/nik-maltcev/datatrace/internal/model"
)

// SourceStats is a point-in-time view of one source's rolling counters.
type SourceStats struct {
	Attempts     int64   `json:"attempts"`
	Successes    int64   `json:"successes"`
	Failures     int64   `json:"failures"`
	Timeouts     int64   `json:"timeouts"`
	CircuitOpens int64   `json:"circuit_opens"`
	Records      int64   `json:"records"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	LastStatus   string  `json:"last_status"`
}

// latencyAlpha is the EWMA smoothing factor for latency tracking.
const latencyAlpha = 0.2

// Collector accumulates per-source statistics. It implements the
// aggregator's Recorder interface and is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	stats map[string]*SourceStats
}

// NewCollector creates an empty stats collector.
func NewCollector() *Collector {
	return &Collector{stats: make(map[string]*SourceStats)}
}

// Record folds one source outcome into the rolling counters.
func (c *Collector) Record(res model.SourceResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[res.SourceID]
	if !ok {
		s = &SourceStats{}
		c.stats[res.SourceID] = s
	}

	s.LastStatus = string(res.Status)
	switch res.Status {
	case model.StatusCircuitOpen:
		s.CircuitOpens++
		return // skipped, not an attempt
	case model.StatusSuccess, model.StatusNoData:
		s.Successes++
	case model.StatusTimeout:
		s.Timeouts++
		s.Failures++
	default:
		s.Failures++
	}

	s.Attempts++
	s.Records += int64(res.TotalRecords)
	if s.AvgLatencyMs == 0 {
		s.AvgLatencyMs = float64(res.LatencyMs)
	} else {
		s.AvgLatencyMs = latencyAlpha*float64(res.LatencyMs) + (1-latencyAlpha)*s.AvgLatencyMs
	}
}

// Snapshot returns a copy of every source's current stats.
func (c *Collector) Snapshot() map[string]SourceStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]SourceStats, len(c.stats))
	for id, s := range c.stats {
		out[id] = *s
	}
	return out
}
