// Package search provides the web-search memory tier: a Bing Web Search
// client and an HTML page text extractor.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBingEndpoint = "https://api.bing.microsoft.com/v7.0/search"
	defaultTimeout      = 10 * time.Second
)

// Result is one web search hit.
type Result struct {
	ID              string
	Name            string
	URL             string
	DisplayURL      string
	Snippet         string
	DateLastCrawled string
	Language        string
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// BingConfig configures the Bing Web Search client.
type BingConfig struct {
	// SubscriptionKey is sent as Ocp-Apim-Subscription-Key.
	SubscriptionKey string
	// Endpoint defaults to the public v7 search endpoint.
	Endpoint string
	Timeout  time.Duration
}

// Bing implements Searcher on the Bing Web Search v7 API.
type Bing struct {
	cfg    BingConfig
	client *http.Client
}

// NewBing creates a Bing client. The returned client is safe for concurrent
// use.
func NewBing(cfg BingConfig) *Bing {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultBingEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Bing{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			URL             string `json:"url"`
			DisplayURL      string `json:"displayUrl"`
			Snippet         string `json:"snippet"`
			DateLastCrawled string `json:"dateLastCrawled"`
			Language        string `json:"language"`
		} `json:"value"`
	} `json:"webPages"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Search returns up to n web page results for query. No results is not an
// error.
func (b *Bing) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if n <= 0 {
		n = 3
	}

	u, err := url.Parse(b.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("search bing: endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(n))
	q.Set("textFormat", "Raw")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("search bing: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.cfg.SubscriptionKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search bing: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("search bing: read response: %w", err)
	}

	var br bingResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, fmt.Errorf("search bing: decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if br.Error != nil {
		return nil, fmt.Errorf("search bing: API error (%s): %s", br.Error.Code, br.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search bing: unexpected HTTP status %d", resp.StatusCode)
	}

	out := make([]Result, 0, len(br.WebPages.Value))
	for _, v := range br.WebPages.Value {
		out = append(out, Result{
			ID:              v.ID,
			Name:            v.Name,
			URL:             v.URL,
			DisplayURL:      v.DisplayURL,
			Snippet:         v.Snippet,
			DateLastCrawled: v.DateLastCrawled,
			Language:        v.Language,
		})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

var _ Searcher = (*Bing)(nil)
