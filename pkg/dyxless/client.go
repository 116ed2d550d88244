// Package dyxless provides a client for the Dyxless data search API.
package dyxless

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

const defaultBaseURL = "https://api-dyxless.cfd"

// Client performs searches against the Dyxless API.
type Client interface {
	// Query runs a search for the given value.
	Query(ctx context.Context, query string) (*QueryResponse, error)
	// Ping checks API reachability via the status endpoint.
	Ping(ctx context.Context) error
}

// QueryResponse is the response from POST /query.
type QueryResponse struct {
	Status  bool             `json:"status"`
	Counts  int              `json:"counts"`
	Data    []map[string]any `json:"data"`
	Message string           `json:"message,omitempty"`
}

// APIError is a non-2xx response from the Dyxless API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dyxless: status %d: %s", e.StatusCode, e.Body)
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

// NewClient creates a Dyxless API client.
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

func (c *httpClient) Query(ctx context.Context, query string) (*QueryResponse, error) {
	body, err := json.Marshal(map[string]string{
		"token": c.token,
		"query": query,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dyxless: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "dyxless: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "dyxless: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "dyxless: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result QueryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "dyxless: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return eris.Wrap(err, "dyxless: create ping request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "dyxless: ping")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}
