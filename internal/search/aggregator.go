// Package search implements the multi-source fan-out engine: one query
// dispatched concurrently across every enabled source through the
// retry/circuit-breaker stack, merged into a single ranked result.
package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/internal/resilience"
	"github.com/nik-maltcev/datatrace/internal/source"
)

// ErrNoSourcesAvailable is returned when the candidate set is empty.
var ErrNoSourcesAvailable = eris.New("no sources available for search")

// ErrUnknownSource is returned when a caller-specified source id does not
// exist or is disabled.
var ErrUnknownSource = eris.New("unknown or disabled source")

// Recorder receives every per-source outcome for metrics collection.
type Recorder interface {
	Record(res model.SourceResult)
}

// Options tunes the aggregator.
type Options struct {
	// Retry is the per-dispatch retry policy.
	Retry resilience.RetryConfig
	// Concurrency bounds simultaneous in-flight source calls. Default: 5.
	Concurrency int
	// Recorder, if set, observes every SourceResult.
	Recorder Recorder
}

// Aggregator owns the source registry and all circuit breaker state. It
// is safe for concurrent use by multiple in-flight batches.
type Aggregator struct {
	registry    *source.Registry
	breakers    *resilience.SourceBreakers
	retry       resilience.RetryConfig
	concurrency int
	recorder    Recorder

	// test seams
	nowFunc func() time.Time
	newID   func() string
}

// New creates an Aggregator over the given registry and breaker set.
func New(registry *source.Registry, breakers *resilience.SourceBreakers, opts Options) *Aggregator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry = resilience.DefaultRetryConfig()
	}
	return &Aggregator{
		registry:    registry,
		breakers:    breakers,
		retry:       retry,
		concurrency: concurrency,
		recorder:    opts.Recorder,
		nowFunc:     time.Now,
		newID:       uuid.NewString,
	}
}

// SearchAll fans the query out to all enabled sources (or the specified
// subset), collects every result, and returns the merged ranked set.
// Per-source failures never abort the batch; only precondition violations
// (empty query, empty candidate set, unknown source id) return an error.
func (a *Aggregator) SearchAll(ctx context.Context, q model.Query, sourceIDs []string) (*model.AggregatedResult, error) {
	if strings.TrimSpace(q.Value) == "" {
		return nil, model.ErrEmptyQuery
	}

	candidates, err := a.resolveCandidates(sourceIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoSourcesAvailable
	}

	start := a.nowFunc()
	searchID := a.newID()
	log := zap.L().With(
		zap.String("search_id", searchID),
		zap.String("query", q.Redacted()),
		zap.Int("candidates", len(candidates)),
	)
	log.Info("starting aggregated search")

	results := make([]*model.SourceResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, src := range candidates {
		// Check the breaker immediately before dispatch rather than
		// caching state across the batch; open sources don't consume
		// a concurrency slot.
		if a.breakers.Get(src.ID()).State() == resilience.CircuitOpen {
			results[i] = a.circuitOpenResult(src)
			continue
		}

		i, src := i, src
		g.Go(func() error {
			results[i] = a.dispatch(gctx, src, q)
			return nil // per-source failures never abort the batch
		})
	}
	// Workers never return errors; Wait is purely a completion barrier.
	_ = g.Wait()

	agg := a.merge(searchID, q, results, start)
	log.Info("aggregated search complete",
		zap.Int("sources_queried", agg.TotalSourcesQueried),
		zap.Int("sources_with_data", agg.TotalSourcesWithData),
		zap.Int("total_records", agg.TotalRecords),
		zap.Int64("duration_ms", agg.DurationMs),
	)
	return agg, nil
}

// ProbeAll checks availability of every enabled source concurrently.
func (a *Aggregator) ProbeAll(ctx context.Context) []model.ProbeStatus {
	sources := a.registry.Enabled()
	statuses := make([]model.ProbeStatus, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			statuses[i] = model.ProbeStatus{
				SourceID:  src.ID(),
				Available: src.Probe(gctx),
			}
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

// BreakerSnapshots exposes a read-only view of every breaker for
// monitoring.
func (a *Aggregator) BreakerSnapshots() map[string]resilience.Snapshot {
	return a.breakers.Snapshots()
}

// Registry returns the adapter registry for runtime enable/disable.
func (a *Aggregator) Registry() *source.Registry {
	return a.registry
}

func (a *Aggregator) resolveCandidates(sourceIDs []string) ([]source.Source, error) {
	if len(sourceIDs) == 0 {
		return a.registry.Enabled(), nil
	}

	picked := make(map[string]source.Source, len(sourceIDs))
	for _, id := range sourceIDs {
		src := a.registry.Get(id)
		if src == nil || !a.registry.IsEnabled(id) {
			return nil, eris.Wrapf(ErrUnknownSource, "%q", id)
		}
		picked[id] = src
	}

	out := make([]source.Source, 0, len(picked))
	for _, src := range picked {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() < out[j].Priority()
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

// dispatch runs one source call through breaker + retry and converts any
// failure into a SourceResult. It never returns nil.
func (a *Aggregator) dispatch(ctx context.Context, src source.Source, q model.Query) *model.SourceResult {
	cb := a.breakers.Get(src.ID())
	retryCfg := a.retry
	retryCfg.ShouldRetry = source.IsTransient
	retryCfg.OnRetry = resilience.RetryLogger(src.ID())

	start := a.nowFunc()
	res, err := resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*model.SourceResult, error) {
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.SourceResult, error) {
			return src.Search(ctx, q)
		})
	})
	latency := a.nowFunc().Sub(start)

	if err != nil {
		if eris.Is(err, resilience.ErrCircuitOpen) {
			return a.circuitOpenResult(src)
		}
		return a.failureResult(src, err, latency)
	}
	return res
}

func (a *Aggregator) circuitOpenResult(src source.Source) *model.SourceResult {
	return &model.SourceResult{
		SourceID:     src.ID(),
		DisplayLabel: src.Label(),
		Status:       model.StatusCircuitOpen,
	}
}

func (a *Aggregator) failureResult(src source.Source, err error, latency time.Duration) *model.SourceResult {
	kind := source.KindOf(err)
	status := model.StatusError
	if kind == source.KindTimeout {
		status = model.StatusTimeout
	}
	zap.L().Warn("source call failed",
		zap.String("source", src.ID()),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return &model.SourceResult{
		SourceID:     src.ID(),
		DisplayLabel: src.Label(),
		Status:       status,
		ErrorKind:    string(kind),
		ErrorMessage: kind.Message(),
		LatencyMs:    latency.Milliseconds(),
	}
}

func (a *Aggregator) merge(searchID string, q model.Query, results []*model.SourceResult, start time.Time) *model.AggregatedResult {
	merged := make([]model.SourceResult, 0, len(results))
	for _, r := range results {
		merged = append(merged, *r)
		if a.recorder != nil {
			a.recorder.Record(*r)
		}
	}

	rankResults(merged)

	agg := &model.AggregatedResult{
		SearchID:    searchID,
		Timestamp:   start,
		QueryLength: len(q.Value),
		SearchType:  q.Type,
		Results:     merged,
		DurationMs:  a.nowFunc().Sub(start).Milliseconds(),
	}
	for _, r := range merged {
		if r.Status != model.StatusCircuitOpen {
			agg.TotalSourcesQueried++
		}
		if r.HasData {
			agg.TotalSourcesWithData++
		}
		agg.TotalRecords += r.TotalRecords
	}
	return agg
}

// rankResults orders sources with data first, then successful statuses,
// then by descending record count. The sort is stable so ties keep the
// candidate priority order.
func rankResults(results []model.SourceResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].HasData != results[j].HasData {
			return results[i].HasData
		}
		iSuccess := results[i].Status == model.StatusSuccess
		jSuccess := results[j].Status == model.StatusSuccess
		if iSuccess != jSuccess {
			return iSuccess
		}
		return results[i].TotalRecords > results[j].TotalRecords
	})
}
