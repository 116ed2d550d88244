package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nik-maltcev/datatrace/internal/model"
)

type stubSource struct {
	id       string
	priority int
}

func (s *stubSource) ID() string    { return s.id }
func (s *stubSource) Label() string { return s.id }
func (s *stubSource) Priority() int { return s.priority }

func (s *stubSource) Search(ctx context.Context, q model.Query) (*model.SourceResult, error) {
	return &model.SourceResult{SourceID: s.id, Status: model.StatusNoData}, nil
}

func (s *stubSource) Probe(ctx context.Context) bool { return true }

func TestRegistry_EnabledSortedByPriority(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&stubSource{id: "third", priority: 3})
	r.Register(&stubSource{id: "first", priority: 1})
	r.Register(&stubSource{id: "second", priority: 2})

	enabled := r.Enabled()
	require.Len(t, enabled, 3)
	assert.Equal(t, "first", enabled[0].ID())
	assert.Equal(t, "second", enabled[1].ID())
	assert.Equal(t, "third", enabled[2].ID())
}

func TestRegistry_TieBreakByID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&stubSource{id: "zulu", priority: 1})
	r.Register(&stubSource{id: "alpha", priority: 1})

	enabled := r.Enabled()
	assert.Equal(t, "alpha", enabled[0].ID())
	assert.Equal(t, "zulu", enabled[1].ID())
}

func TestRegistry_SetEnabled(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&stubSource{id: "alpha", priority: 1})
	r.Register(&stubSource{id: "bravo", priority: 2})

	require.True(t, r.IsEnabled("alpha"))
	require.True(t, r.SetEnabled("alpha", false))
	assert.False(t, r.IsEnabled("alpha"))

	enabled := r.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "bravo", enabled[0].ID())

	// Disabled sources remain listed and retrievable.
	assert.NotNil(t, r.Get("alpha"))
	assert.Equal(t, []string{"alpha", "bravo"}, r.List())

	assert.False(t, r.SetEnabled("missing", true))
	assert.False(t, r.IsEnabled("missing"))
}

func TestClassifyHTTP_FallsBackToBody(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindInvalidToken, classifyHTTP(401, ""))
	assert.Equal(t, KindUnavailable, classifyHTTP(502, ""))
	// Unclassifiable status, but the body names the problem.
	assert.Equal(t, KindRateLimit, classifyHTTP(400, "rate limit exceeded"))
	assert.Equal(t, KindUnknown, classifyHTTP(400, "something odd"))
}
