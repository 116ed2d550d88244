package source

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/pkg/itp"
)

// ITP adapts the ITP API: result groups keyed by an arbitrary numeric
// index, each group naming the database it was matched in.
type ITP struct {
	base
	client itp.Client
}

// NewITP builds the ITP adapter. Fails fast on a missing API key.
func NewITP(cfg Config) (*ITP, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	var opts []itp.Option
	if cfg.BaseURL != "" {
		opts = append(opts, itp.WithBaseURL(cfg.BaseURL))
	}
	return &ITP{
		base:   newBase("itp", "ITP", cfg),
		client: itp.NewClient(cfg.Token, opts...),
	}, nil
}

func (s *ITP) Search(ctx context.Context, q model.Query) (*model.SourceResult, error) {
	callCtx, cancel, err := s.begin(ctx, q)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	resp, err := s.client.Search(callCtx, q.Value, string(q.Type))
	if err != nil {
		var apiErr *itp.APIError
		if errors.As(err, &apiErr) {
			return nil, NewError(s.id, classifyHTTP(apiErr.StatusCode, apiErr.Body), err)
		}
		return nil, s.wrapCallError(err)
	}

	if resp.Error != "" {
		if kind := ClassifyMessage(resp.Error); kind != KindUnknown {
			return nil, NewError(s.id, kind, errors.New(resp.Error))
		}
		return nil, NewError(s.id, KindUnknown, errors.New(resp.Error))
	}

	// Group keys are upstream-assigned numeric indexes; sort them
	// numerically so normalization is deterministic.
	keys := make([]string, 0, len(resp.Data))
	for k := range resp.Data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		if aerr != nil || berr != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	var records []model.NormalizedRecord
	idx := 0
	for _, k := range keys {
		group := resp.Data[k]
		for _, row := range group.Records {
			records = append(records, flatten(s.id, group.Database, idx, row)...)
			idx++
		}
	}
	return s.successResult(records, time.Since(start)), nil
}

func (s *ITP) Probe(ctx context.Context) bool {
	return s.client.Ping(ctx) == nil
}
