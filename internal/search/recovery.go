package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/internal/source"
)

// StrategyAttempt records one recovery strategy that was tried or
// declined, for diagnostic context.
type StrategyAttempt struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// RecoveryError carries the original batch failure plus every strategy
// the coordinator attempted before giving up.
type RecoveryError struct {
	Original error
	Attempts []StrategyAttempt
}

func (e *RecoveryError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.Strategy, a.Reason))
	}
	return fmt.Sprintf("search recovery failed: %v; attempted: %s", e.Original, strings.Join(parts, ", "))
}

func (e *RecoveryError) Unwrap() error {
	return e.Original
}

// RecoveryOptions tunes the coordinator.
type RecoveryOptions struct {
	// RetryDelay is the wait before the retry-with-reset strategy
	// re-runs the batch. Default: 2s.
	RetryDelay time.Duration
	// AllowDegraded enables the last-resort empty response. Default
	// behavior is enabled; set DisableDegraded to turn it off.
	DisableDegraded bool
}

// RecoveryCoordinator applies fallback strategies when SearchAll itself
// fails (as opposed to returning per-source errors). Strategies run in
// priority order; the first to produce a usable result wins.
type RecoveryCoordinator struct {
	agg  *Aggregator
	opts RecoveryOptions

	// sleepFunc is a test seam for the backoff wait.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewRecoveryCoordinator creates a coordinator over the aggregator.
func NewRecoveryCoordinator(agg *Aggregator, opts RecoveryOptions) *RecoveryCoordinator {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &RecoveryCoordinator{
		agg:       agg,
		opts:      opts,
		sleepFunc: sleepCtx,
	}
}

// Run attempts recovery for a failed batch. It returns a usable
// AggregatedResult from the first applicable strategy, or a
// *RecoveryError wrapping the original failure when every strategy
// declines.
func (rc *RecoveryCoordinator) Run(ctx context.Context, q model.Query, sourceIDs []string, origErr error) (*model.AggregatedResult, error) {
	log := zap.L().With(
		zap.String("query", q.Redacted()),
		zap.Error(origErr),
	)
	log.Warn("search failed, attempting recovery")

	var attempts []StrategyAttempt

	// Strategy 1: partial search over sources still believed available.
	if res, reason := rc.tryPartial(ctx, q, sourceIDs); res != nil {
		log.Info("recovery succeeded", zap.String("strategy", "partial_search"))
		res.RecoveryStrategy = "partial_search"
		return res, nil
	} else {
		attempts = append(attempts, StrategyAttempt{Strategy: "partial_search", Reason: reason})
	}

	// Strategy 2: reset breakers and retry the full batch once, but only
	// for failures that look transient.
	if res, reason := rc.tryRetryWithReset(ctx, q, sourceIDs, origErr); res != nil {
		log.Info("recovery succeeded", zap.String("strategy", "retry_with_reset"))
		res.RecoveryStrategy = "retry_with_reset"
		return res, nil
	} else {
		attempts = append(attempts, StrategyAttempt{Strategy: "retry_with_reset", Reason: reason})
	}

	// Strategy 3: degraded empty response rather than an error.
	if !rc.opts.DisableDegraded {
		log.Info("recovery degraded to empty response")
		return rc.degradedResult(q), nil
	}
	attempts = append(attempts, StrategyAttempt{Strategy: "degraded_response", Reason: "disabled by configuration"})

	return nil, &RecoveryError{Original: origErr, Attempts: attempts}
}

// tryPartial re-runs the search restricted to sources whose breakers are
// not open. Declines when no such subset exists.
func (rc *RecoveryCoordinator) tryPartial(ctx context.Context, q model.Query, sourceIDs []string) (*model.AggregatedResult, string) {
	candidates := sourceIDs
	if len(candidates) == 0 {
		candidates = rc.agg.Registry().List()
	}

	snapshots := rc.agg.BreakerSnapshots()
	var available []string
	for _, id := range candidates {
		if !rc.agg.Registry().IsEnabled(id) {
			continue
		}
		if snap, ok := snapshots[id]; ok && snap.IsOpen {
			continue
		}
		available = append(available, id)
	}

	if len(available) == 0 {
		return nil, "no sources currently available"
	}
	if len(available) == len(candidates) {
		return nil, "no failing sources to exclude"
	}

	res, err := rc.agg.SearchAll(ctx, q, available)
	if err != nil {
		return nil, fmt.Sprintf("partial search failed: %v", err)
	}
	return res, ""
}

// tryRetryWithReset resets the affected breakers and retries the full
// batch once after a backoff. Declines for non-transient failures.
func (rc *RecoveryCoordinator) tryRetryWithReset(ctx context.Context, q model.Query, sourceIDs []string, origErr error) (*model.AggregatedResult, string) {
	if !source.IsTransient(origErr) {
		return nil, "original error is not transient"
	}

	candidates := sourceIDs
	if len(candidates) == 0 {
		candidates = rc.agg.Registry().List()
	}
	for _, id := range candidates {
		rc.agg.breakers.Reset(id)
	}

	if err := rc.sleepFunc(ctx, rc.opts.RetryDelay); err != nil {
		return nil, "cancelled during backoff"
	}

	res, err := rc.agg.SearchAll(ctx, q, sourceIDs)
	if err != nil {
		return nil, fmt.Sprintf("retry failed: %v", err)
	}
	return res, ""
}

// degradedResult builds a valid, empty AggregatedResult flagged degraded.
func (rc *RecoveryCoordinator) degradedResult(q model.Query) *model.AggregatedResult {
	return &model.AggregatedResult{
		SearchID:         rc.agg.newID(),
		Timestamp:        rc.agg.nowFunc(),
		QueryLength:      len(q.Value),
		SearchType:       q.Type,
		Results:          []model.SourceResult{},
		Degraded:         true,
		RecoveryStrategy: "degraded_response",
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
