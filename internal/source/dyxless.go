package source

import (
	"context"
	"errors"
	"time"

	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/pkg/dyxless"
)

// Dyxless adapts the Dyxless API: a flat list of records where each
// record names its own database via a "database" key.
type Dyxless struct {
	base
	client dyxless.Client
}

// NewDyxless builds the Dyxless adapter. Fails fast on a missing token.
func NewDyxless(cfg Config) (*Dyxless, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	var opts []dyxless.Option
	if cfg.BaseURL != "" {
		opts = append(opts, dyxless.WithBaseURL(cfg.BaseURL))
	}
	return &Dyxless{
		base:   newBase("dyxless", "Dyxless", cfg),
		client: dyxless.NewClient(cfg.Token, opts...),
	}, nil
}

func (d *Dyxless) Search(ctx context.Context, q model.Query) (*model.SourceResult, error) {
	callCtx, cancel, err := d.begin(ctx, q)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	resp, err := d.client.Query(callCtx, q.Value)
	if err != nil {
		var apiErr *dyxless.APIError
		if errors.As(err, &apiErr) {
			return nil, NewError(d.id, classifyHTTP(apiErr.StatusCode, apiErr.Body), err)
		}
		return nil, d.wrapCallError(err)
	}

	if !resp.Status {
		if kind := ClassifyMessage(resp.Message); kind != KindUnknown {
			return nil, NewError(d.id, kind, errors.New(resp.Message))
		}
		return nil, NewError(d.id, KindUnknown, errors.New(resp.Message))
	}

	var records []model.NormalizedRecord
	for i, row := range resp.Data {
		database, _ := row["database"].(string)
		records = append(records, flatten(d.id, database, i, row, "database")...)
	}
	return d.successResult(records, time.Since(start)), nil
}

func (d *Dyxless) Probe(ctx context.Context) bool {
	return d.client.Ping(ctx) == nil
}
