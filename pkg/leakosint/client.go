// Package leakosint provides a client for the LeakOsint leak search API.
package leakosint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://leakosintapi.com"

// NoResultsKey is the pseudo-database the upstream returns when nothing
// matched the query.
const NoResultsKey = "No results found"

// Client performs searches against the LeakOsint API.
type Client interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
	// Ping checks API reachability. The root endpoint answers GET with a
	// static page, distinct from the POST search contract.
	Ping(ctx context.Context) error
}

// SearchResponse is the response body. Results are nested: named
// databases each carry a Data collection of matched records.
type SearchResponse struct {
	List      map[string]Database `json:"List"`
	ErrorCode string              `json:"Error code,omitempty"`
}

// Database is one leak database entry within a response.
type Database struct {
	Data         []map[string]any `json:"Data"`
	InfoLeak     string           `json:"InfoLeak"`
	NumOfResults int              `json:"NumOfResults"`
}

// APIError is a non-2xx response from the LeakOsint API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("leakosint: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimit sets the per-search result limit sent upstream.
func WithLimit(limit int) Option {
	return func(c *httpClient) {
		c.limit = limit
	}
}

type httpClient struct {
	token   string
	baseURL string
	limit   int
	lang    string
	http    *http.Client
}

// NewClient creates a LeakOsint API client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		limit:   100,
		lang:    "ru",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	body, err := json.Marshal(map[string]any{
		"token":   c.token,
		"request": query,
		"limit":   c.limit,
		"lang":    c.lang,
	})
	if err != nil {
		return nil, eris.Wrap(err, "leakosint: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "leakosint: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "leakosint: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "leakosint: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "leakosint: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return eris.Wrap(err, "leakosint: create ping request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "leakosint: ping")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}
