// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search retrieves web content for research queries: a Provider
// finds pages matching a query and a Scraper fetches a page as Markdown.
package search

import "context"

// Item is a single search hit.
type Item struct {
	URL   string
	Title string
	Text  string
}

// Page is the scraped content of a single URL.
type Page struct {
	Markdown      string
	PublishedDate string
}

// Provider searches the web for a query, returning at most limit items.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

// Scraper fetches one URL and returns its content as Markdown.
type Scraper interface {
	Scrape(ctx context.Context, url string) (Page, error)
}
