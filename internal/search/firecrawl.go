// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Finance-LLMs/deep-research/internal/httputil"
	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// defaultFirecrawlBase is the hosted Firecrawl API. Self-hosted instances
// override it through SearchConfig.BaseURL.
const defaultFirecrawlBase = "https://api.firecrawl.dev"

// Firecrawl is a search Provider and page Scraper backed by the Firecrawl
// API. The zero value is not usable; construct it with NewFirecrawl.
type Firecrawl struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	userAgent  string
	maxRetries int
}

// NewFirecrawl creates a Firecrawl client from the given configuration.
func NewFirecrawl(cfg types.SearchConfig) *Firecrawl {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultFirecrawlBase
	}
	return &Firecrawl{
		client:     &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
}

type firecrawlSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type firecrawlSearchResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"data"`
}

// Search queries the Firecrawl search endpoint. Hits without a URL are
// dropped.
func (f *Firecrawl) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}

	var sr firecrawlSearchResponse
	if err := f.post(ctx, "/v1/search", firecrawlSearchRequest{Query: query, Limit: limit}, &sr); err != nil {
		return nil, fmt.Errorf("Firecrawl search: %w", err)
	}
	if !sr.Success && sr.Error != "" {
		return nil, fmt.Errorf("Firecrawl search: %s", sr.Error)
	}

	var items []Item
	for _, d := range sr.Data {
		if d.URL == "" {
			continue
		}
		items = append(items, Item{URL: d.URL, Title: d.Title, Text: d.Description})
	}
	return items, nil
}

type firecrawlScrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlScrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			PublishedTime string `json:"publishedTime"`
		} `json:"metadata"`
	} `json:"data"`
}

// Scrape fetches one URL as Markdown via the Firecrawl scrape endpoint.
func (f *Firecrawl) Scrape(ctx context.Context, url string) (Page, error) {
	var sr firecrawlScrapeResponse
	if err := f.post(ctx, "/v1/scrape", firecrawlScrapeRequest{URL: url, Formats: []string{"markdown"}}, &sr); err != nil {
		return Page{}, fmt.Errorf("Firecrawl scrape %s: %w", url, err)
	}
	if !sr.Success && sr.Error != "" {
		return Page{}, fmt.Errorf("Firecrawl scrape %s: %s", url, sr.Error)
	}
	return Page{
		Markdown:      sr.Data.Markdown,
		PublishedDate: sr.Data.Metadata.PublishedTime,
	}, nil
}

// post sends a JSON request to the Firecrawl API and decodes the JSON
// response into out, retrying on rate limits.
func (f *Firecrawl) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.maxRetries)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
