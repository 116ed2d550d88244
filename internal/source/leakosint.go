package source

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/pkg/leakosint"
)

// LeakOsint adapts the LeakOsint API: records nested under named
// databases, each with its own Data collection.
type LeakOsint struct {
	base
	client leakosint.Client
}

// NewLeakOsint builds the LeakOsint adapter. Fails fast on a missing token.
func NewLeakOsint(cfg Config) (*LeakOsint, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	var opts []leakosint.Option
	if cfg.BaseURL != "" {
		opts = append(opts, leakosint.WithBaseURL(cfg.BaseURL))
	}
	return &LeakOsint{
		base:   newBase("leakosint", "LeakOsint", cfg),
		client: leakosint.NewClient(cfg.Token, opts...),
	}, nil
}

func (s *LeakOsint) Search(ctx context.Context, q model.Query) (*model.SourceResult, error) {
	callCtx, cancel, err := s.begin(ctx, q)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	resp, err := s.client.Search(callCtx, q.Value)
	if err != nil {
		var apiErr *leakosint.APIError
		if errors.As(err, &apiErr) {
			return nil, NewError(s.id, classifyHTTP(apiErr.StatusCode, apiErr.Body), err)
		}
		return nil, s.wrapCallError(err)
	}

	if resp.ErrorCode != "" {
		if kind := ClassifyMessage(resp.ErrorCode); kind != KindUnknown {
			return nil, NewError(s.id, kind, errors.New(resp.ErrorCode))
		}
		return nil, NewError(s.id, KindUnknown, errors.New(resp.ErrorCode))
	}

	names := make([]string, 0, len(resp.List))
	for name := range resp.List {
		if name == leakosint.NoResultsKey {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var records []model.NormalizedRecord
	idx := 0
	for _, name := range names {
		db := resp.List[name]
		for _, row := range db.Data {
			records = append(records, flatten(s.id, name, idx, row)...)
			idx++
		}
	}
	return s.successResult(records, time.Since(start)), nil
}

func (s *LeakOsint) Probe(ctx context.Context) bool {
	return s.client.Ping(ctx) == nil
}
