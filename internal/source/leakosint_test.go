package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nik-maltcev/datatrace/internal/model"
)

func TestLeakOsint_Search_NestedDatabases(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{
			"List": {
				"Zeta Leak": {
					"Data": [{"email": "ivan@example.com"}],
					"InfoLeak": "2021 breach",
					"NumOfResults": 1
				},
				"Alpha Leak": {
					"Data": [{"phone": "+79123456789"}],
					"InfoLeak": "2019 breach",
					"NumOfResults": 1
				}
			}
		}`))
	}))
	defer srv.Close()

	src, err := NewLeakOsint(Config{Token: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	q, err := model.NewQuery(model.SearchTypeEmail, "ivan@example.com")
	require.NoError(t, err)

	res, err := src.Search(context.Background(), q)
	require.NoError(t, err)

	// Database names are walked in sorted order.
	assert.Equal(t, []string{"Alpha Leak", "Zeta Leak"}, res.Databases)
	assert.Equal(t, 2, res.TotalRecords)
}

func TestLeakOsint_Search_NoResultsPseudoDatabase(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"List": {
				"No results found": {"Data": [], "InfoLeak": "", "NumOfResults": 0}
			}
		}`))
	}))
	defer srv.Close()

	src, err := NewLeakOsint(Config{Token: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	q, err := model.NewQuery(model.SearchTypePhone, "+79123456789")
	require.NoError(t, err)

	res, err := src.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoData, res.Status)
	assert.False(t, res.HasData)
	assert.Empty(t, res.Databases)
}

func TestLeakOsint_Search_ErrorCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error code": "invalid token"}`))
	}))
	defer srv.Close()

	src, err := NewLeakOsint(Config{Token: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	q, err := model.NewQuery(model.SearchTypeSNILS, "11223344595")
	require.NoError(t, err)

	_, err = src.Search(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, KindInvalidToken, KindOf(err))
}
