// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "deep-research/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds settings for the completion service.
type AIConfig struct {
	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the completion API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint for OpenAI-compatible providers.
	// Empty means the default OpenAI endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// EmbeddingConfig holds settings for the embedding service used by the
// retrieval pipeline.
type EmbeddingConfig struct {
	// Model is the embedding model identifier (e.g. "text-embedding-3-small").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the embedding API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint for OpenAI-compatible providers.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions requests reduced-dimension vectors when > 0.
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// SearchConfig holds settings for the search/scrape service.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the Firecrawl API key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the Firecrawl API endpoint (self-hosted instances).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the retry budget for rate-limited requests (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// PipelineConfig holds settings for retrieval post-processing.
type PipelineConfig struct {
	// DedupThreshold is the cosine similarity above which two documents are
	// considered near-duplicates (default 0.9).
	DedupThreshold float64 `json:"dedup_threshold" yaml:"dedup_threshold"`

	// MinYear is the oldest acceptable publication year for the freshness
	// filter (default 2020). Documents with no detectable year are kept.
	MinYear int `json:"min_year" yaml:"min_year"`

	// SkipRanking disables the semantic ranking stage.
	SkipRanking bool `json:"skip_ranking" yaml:"skip_ranking"`

	// SkipDedup disables the near-duplicate removal stage.
	SkipDedup bool `json:"skip_dedup" yaml:"skip_dedup"`

	// SkipFreshness disables the freshness filtering stage.
	SkipFreshness bool `json:"skip_freshness" yaml:"skip_freshness"`
}

// ResearchConfig holds settings for the research tree scheduler.
type ResearchConfig struct {
	// Concurrency bounds in-flight sibling sub-queries at one tree level.
	// Each recursion level allocates its own gate of this size (default 2).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// SearchLimit is the number of search results requested per sub-query (default 5).
	SearchLimit int `json:"search_limit" yaml:"search_limit"`

	// ScrapeDelay is the pause before each scrape call, a self-imposed rate
	// limit (default 1s).
	ScrapeDelay time.Duration `json:"scrape_delay" yaml:"scrape_delay"`

	// MaxLearnings bounds the learnings extracted per sub-query (default 3).
	MaxLearnings int `json:"max_learnings" yaml:"max_learnings"`

	// ContentLimit is the per-document character budget when building
	// extraction prompts (default 25000).
	ContentLimit int `json:"content_limit" yaml:"content_limit"`
}

// StoreConfig holds settings for the research run store.
type StoreConfig struct {
	// Path is the SQLite database file (default "research/runs.db").
	Path string `json:"path" yaml:"path"`
}

// Config groups all stage configurations.
type Config struct {
	AI        AIConfig        `json:"ai" yaml:"ai"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Search    SearchConfig    `json:"search" yaml:"search"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline"`
	Research  ResearchConfig  `json:"research" yaml:"research"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}
