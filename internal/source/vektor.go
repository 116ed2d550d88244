package source

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/pkg/vektor"
)

// Vektor adapts the Vektor API: result records grouped by database name,
// with error strings reported inline in an otherwise-200 response.
type Vektor struct {
	base
	client vektor.Client
}

// NewVektor builds the Vektor adapter. Fails fast on a missing token.
func NewVektor(cfg Config) (*Vektor, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	var opts []vektor.Option
	if cfg.BaseURL != "" {
		opts = append(opts, vektor.WithBaseURL(cfg.BaseURL))
	}
	return &Vektor{
		base:   newBase("vektor", "Vektor", cfg),
		client: vektor.NewClient(cfg.Token, opts...),
	}, nil
}

func (s *Vektor) Search(ctx context.Context, q model.Query) (*model.SourceResult, error) {
	callCtx, cancel, err := s.begin(ctx, q)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	resp, err := s.client.Search(callCtx, q.Value)
	if err != nil {
		var apiErr *vektor.APIError
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

	names := make([]string, 0, len(resp.Result))
	for name := range resp.Result {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []model.NormalizedRecord
	idx := 0
	for _, name := range names {
		for _, row := range resp.Result[name] {
			records = append(records, flatten(s.id, name, idx, row)...)
			idx++
		}
	}
	return s.successResult(records, time.Since(start)), nil
}

func (s *Vektor) Probe(ctx context.Context) bool {
	return s.client.Ping(ctx) == nil
}
