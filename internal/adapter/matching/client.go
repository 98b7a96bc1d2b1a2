// Package matching provides an HTTP client for the vector search sidecar
// that indexes MEDs and planeaciones.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redmag-edu/mentoria/internal/config"
	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/content"
	"github.com/redmag-edu/mentoria/internal/port/vectorindex"
	"github.com/redmag-edu/mentoria/internal/resilience"
)

// Client talks to the vector search service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

var _ vectorindex.Index = (*Client)(nil)

// NewClient creates a vector search client from config.
func NewClient(cfg config.Index) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type searchRequest struct {
	Embedding []float64 `json:"embedding"`
	K         int       `json:"k"`
}

type searchResponse struct {
	Matches []vectorindex.Match `json:"matches"`
}

// Search returns the k nearest neighbors for the query embedding.
func (c *Client) Search(ctx context.Context, embedding []float64, k int) ([]vectorindex.Match, error) {
	body, err := json.Marshal(searchRequest{Embedding: embedding, K: k})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/search", body)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var result searchResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}
	return result.Matches, nil
}

type listResponse struct {
	Items []content.Item `json:"items"`
	Total int            `json:"total"`
}

// ListByType returns one page of items of the given type plus the total count.
func (c *Client) ListByType(ctx context.Context, t content.Type, page, size int) ([]content.Item, int, error) {
	q := url.Values{}
	q.Set("type", string(t))
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	data, err := c.doRequest(ctx, http.MethodGet, "/v1/items?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}

	var result listResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, 0, fmt.Errorf("unmarshal list response: %w", err)
	}
	return result.Items, result.Total, nil
}

type upsertRequest struct {
	Item      content.Item `json:"item"`
	Embedding []float64    `json:"embedding"`
}

// Upsert inserts or replaces an item and its embedding in the index.
func (c *Client) Upsert(ctx context.Context, item content.Item, embedding []float64) error {
	body, err := json.Marshal(upsertRequest{Item: item, Embedding: embedding})
	if err != nil {
		return fmt.Errorf("marshal upsert request: %w", err)
	}

	if _, err := c.doRequest(ctx, http.MethodPut, "/v1/items/"+url.PathEscape(item.ID), body); err != nil {
		return fmt.Errorf("upsert item %s: %w", item.ID, err)
	}
	return nil
}

// Remove deletes an item from the index.
func (c *Client) Remove(ctx context.Context, id string) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, "/v1/items/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("remove item %s: %w", id, err)
	}
	return nil
}

// Health checks if the index is reachable.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err == nil, err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	var notFound bool
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		// A 404 is a business answer, not an index outage; it must not
		// count against the breaker.
		if resp.StatusCode == http.StatusNotFound {
			notFound = true
			return nil
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("index API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, domain.ErrNotFound
	}
	return result, nil
}
