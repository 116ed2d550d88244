package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    SearchType
		wantErr bool
	}{
		{"phone", SearchTypePhone, false},
		{"EMAIL", SearchTypeEmail, false},
		{" inn ", SearchTypeINN, false},
		{"snils", SearchTypeSNILS, false},
		{"passport", SearchTypePassport, false},
		{"ssn", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSearchType(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			assert.ErrorIs(t, err, ErrUnknownSearchType)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewQuery_TrimsValue(t *testing.T) {
	t.Parallel()

	q, err := NewQuery(SearchTypePhone, "  +79123456789  ")
	require.NoError(t, err)
	assert.Equal(t, "+79123456789", q.Value)
	assert.Equal(t, SearchTypePhone, q.Type)
}

func TestNewQuery_EmptyValue(t *testing.T) {
	t.Parallel()

	_, err := NewQuery(SearchTypeEmail, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestQueryRedacted_HidesValue(t *testing.T) {
	t.Parallel()

	q, err := NewQuery(SearchTypePhone, "+79123456789")
	require.NoError(t, err)

	red := q.Redacted()
	assert.Equal(t, "phone[len=12]", red)
	assert.NotContains(t, red, "79123456789")
}
