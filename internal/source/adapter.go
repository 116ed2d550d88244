package source

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nik-maltcev/datatrace/internal/model"
)

// Config is the static construction-time configuration shared by all
// adapters. Token is mandatory; a missing credential is a construction
// error, never a per-call one.
type Config struct {
	Token    string
	BaseURL  string
	Timeout  time.Duration
	Priority int
	// RPS bounds outbound calls to the upstream. Zero means unlimited.
	RPS float64
}

// ErrMissingToken is returned by adapter constructors when no credential
// is configured.
var ErrMissingToken = errors.New("source: missing API token")

const defaultTimeout = 30 * time.Second

// base carries the identity and call plumbing common to every adapter.
type base struct {
	id       string
	label    string
	priority int
	timeout  time.Duration
	limiter  *rate.Limiter
}

func newBase(id, label string, cfg Config) base {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return base{
		id:       id,
		label:    label,
		priority: cfg.Priority,
		timeout:  timeout,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (b *base) ID() string    { return b.id }
func (b *base) Label() string { return b.label }
func (b *base) Priority() int { return b.priority }

// begin validates the query, waits for the outbound rate limiter, and
// derives the per-call timeout context. Callers must invoke the returned
// cancel func.
func (b *base) begin(ctx context.Context, q model.Query) (context.Context, context.CancelFunc, error) {
	if strings.TrimSpace(q.Value) == "" {
		return nil, nil, NewError(b.id, KindValidation, model.ErrEmptyQuery)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, nil, NewError(b.id, KindTimeout, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	return callCtx, cancel, nil
}

// wrapCallError classifies a transport-level failure from a wire client.
// Adapters classify their typed API errors first and fall back here.
func (b *base) wrapCallError(err error) *Error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		strings.Contains(err.Error(), "unmarshal response") {
		return NewError(b.id, KindParsing, err)
	}

	switch kind := KindOf(err); kind {
	case KindTimeout, KindNetwork:
		return NewError(b.id, kind, err)
	}

	// Plain transport failures (connection refused, DNS) surface as
	// url.Error without a net.Error in some paths.
	if strings.Contains(err.Error(), "send request") || strings.Contains(err.Error(), "connection") {
		return NewError(b.id, KindNetwork, err)
	}
	return NewError(b.id, KindUnknown, err)
}

// classifyHTTP maps an HTTP status plus response body onto the taxonomy.
func classifyHTTP(statusCode int, body string) ErrorKind {
	kind := ClassifyStatus(statusCode)
	if kind == KindUnknown {
		if k := ClassifyMessage(body); k != KindUnknown {
			return k
		}
	}
	return kind
}

// successResult assembles a success/no_data SourceResult from normalized
// records.
func (b *base) successResult(records []model.NormalizedRecord, latency time.Duration) *model.SourceResult {
	status := model.StatusSuccess
	if len(records) == 0 {
		status = model.StatusNoData
	}
	return &model.SourceResult{
		SourceID:     b.id,
		DisplayLabel: b.label,
		Status:       status,
		Records:      records,
		TotalRecords: len(records),
		Databases:    model.DedupDatabases(records),
		HasData:      len(records) > 0,
		LatencyMs:    latency.Milliseconds(),
	}
}
