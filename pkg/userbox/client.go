// Package userbox provides a client for the Usersbox search API.
package userbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.usersbox.ru"

// Client performs searches against the Usersbox API. The token is sent
// bare in the Authorization header (no Bearer prefix).
type Client interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
	// Ping validates the token against the getMe endpoint.
	Ping(ctx context.Context) error
}

// SearchResponse is the response from GET /v1/search.
type SearchResponse struct {
	Status string     `json:"status"`
	Error  *APIStatus `json:"error,omitempty"`
	Data   SearchData `json:"data"`
}

// APIStatus carries an upstream error code and message.
type APIStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SearchData holds per-collection search hits.
type SearchData struct {
	Count int    `json:"count"`
	Items []Item `json:"items"`
}

// Item groups hits from one database/collection pair.
type Item struct {
	Source SourceRef `json:"source"`
	Hits   Hits      `json:"hits"`
}

// SourceRef identifies the collection a hit came from.
type SourceRef struct {
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// Hits is the matched record set for one collection.
type Hits struct {
	Count int              `json:"count"`
	Items []map[string]any `json:"items"`
}

// APIError is a non-2xx response from the Usersbox API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("userbox: status %d: %s", e.StatusCode, e.Body)
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

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Usersbox API client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
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
	u := c.baseURL + "/v1/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "userbox: create request")
	}
	req.Header.Set("Authorization", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "userbox: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "userbox: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "userbox: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/getMe", nil)
	if err != nil {
		return eris.Wrap(err, "userbox: create ping request")
	}
	req.Header.Set("Authorization", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "userbox: ping")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}
