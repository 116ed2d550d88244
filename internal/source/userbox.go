package source

import (
	"context"
	"errors"
	"time"

	"github.com/nik-maltcev/datatrace/internal/model"
	"github.com/nik-maltcev/datatrace/pkg/userbox"
)

// Userbox adapts the Usersbox API: hits grouped under database/collection
// pairs; the composite pair becomes the record's group label.
type Userbox struct {
	base
	client userbox.Client
}

// NewUserbox builds the Userbox adapter. Fails fast on a missing token.
func NewUserbox(cfg Config) (*Userbox, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	var opts []userbox.Option
	if cfg.BaseURL != "" {
		opts = append(opts, userbox.WithBaseURL(cfg.BaseURL))
	}
	return &Userbox{
		base:   newBase("userbox", "Userbox", cfg),
		client: userbox.NewClient(cfg.Token, opts...),
	}, nil
}

func (s *Userbox) Search(ctx context.Context, q model.Query) (*model.SourceResult, error) {
	callCtx, cancel, err := s.begin(ctx, q)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	resp, err := s.client.Search(callCtx, q.Value)
	if err != nil {
		var apiErr *userbox.APIError
		if errors.As(err, &apiErr) {
			return nil, NewError(s.id, classifyHTTP(apiErr.StatusCode, apiErr.Body), err)
		}
		return nil, s.wrapCallError(err)
	}

	if resp.Status != "success" {
		msg := "status " + resp.Status
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		if kind := ClassifyMessage(msg); kind != KindUnknown {
			return nil, NewError(s.id, kind, errors.New(msg))
		}
		return nil, NewError(s.id, KindUnknown, errors.New(msg))
	}

	var records []model.NormalizedRecord
	idx := 0
	for _, item := range resp.Data.Items {
		label := item.Source.Database
		if item.Source.Collection != "" {
			label += "/" + item.Source.Collection
		}
		for _, row := range item.Hits.Items {
			records = append(records, flatten(s.id, label, idx, row)...)
			idx++
		}
	}
	return s.successResult(records, time.Since(start)), nil
}

func (s *Userbox) Probe(ctx context.Context) bool {
	return s.client.Ping(ctx) == nil
}
