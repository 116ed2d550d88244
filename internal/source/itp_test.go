package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nik-maltcev/datatrace/internal/model"
)

func TestITP_Search_NumericGroupOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ivan@example.com", body["request"])
		assert.Equal(t, "email", body["type"])

		w.Write([]byte(`{
			"status": "ok",
			"data": {
				"10": {"database": "Later DB", "records": [{"name": "B"}]},
				"2":  {"database": "Earlier DB", "records": [{"name": "A"}]}
			}
		}`))
	}))
	defer srv.Close()

	src, err := NewITP(Config{Token: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	q, err := model.NewQuery(model.SearchTypeEmail, "ivan@example.com")
	require.NoError(t, err)

	res, err := src.Search(context.Background(), q)
	require.NoError(t, err)

	// Key "2" sorts before key "10" numerically, not lexically.
	assert.Equal(t, []string{"Earlier DB", "Later DB"}, res.Databases)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "A", res.Records[0].Value)
	assert.Equal(t, 0, res.Records[0].RecordIndex)
	assert.Equal(t, "B", res.Records[1].Value)
	assert.Equal(t, 1, res.Records[1].RecordIndex)
}

func TestITP_Search_InlineError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "error": "rate limit exceeded", "data": {}}`))
	}))
	defer srv.Close()

	src, err := NewITP(Config{Token: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	q, err := model.NewQuery(model.SearchTypePhone, "+79123456789")
	require.NoError(t, err)

	_, err = src.Search(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, KindRateLimit, KindOf(err))
}

func TestITP_Search_EmptyData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "data": {}}`))
	}))
	defer srv.Close()

	src, err := NewITP(Config{Token: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	q, err := model.NewQuery(model.SearchTypeINN, "7707083893")
	require.NoError(t, err)

	res, err := src.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoData, res.Status)
	assert.False(t, res.HasData)
	assert.Zero(t, res.TotalRecords)
}
