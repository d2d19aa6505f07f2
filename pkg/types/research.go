// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research pipeline:
// queries, documents, learnings with provenance, progress snapshots, and the
// configuration structs consumed by every stage.
package types

// Query is a single search query generated during research, together with
// the stated reason it is being asked. Immutable once generated.
type Query struct {
	// Text is the query sent to the search service.
	Text string `json:"query" yaml:"query"`

	// ResearchGoal explains what this query is meant to accomplish and which
	// directions to pursue once results are found. It seeds the synthesized
	// query for the next recursion level.
	ResearchGoal string `json:"research_goal" yaml:"research_goal"`
}

// Document is a retrieved page plus metadata attached by the retrieval
// pipeline. URL and Text never change after retrieval; Year and Score are
// additive annotations.
type Document struct {
	// URL is the address the document was scraped from.
	URL string `json:"url" yaml:"url"`

	// Text is the scraped page content (Markdown).
	Text string `json:"text" yaml:"text"`

	// PublishedDate is the publication date reported by the scrape service's
	// page metadata, when available. Checked before the text scan during
	// freshness filtering.
	PublishedDate string `json:"published_date,omitempty" yaml:"published_date,omitempty"`

	// Year is the publication year extracted by the freshness filter.
	// Zero when no year could be detected.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Score is the cosine similarity to the query assigned by the ranking
	// stage. Zero until ranked.
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// ProvenanceRecord links one learning back to the source document and
// snippet that best support it.
type ProvenanceRecord struct {
	// Learning is the insight text this record attributes.
	Learning string `json:"learning" yaml:"learning"`

	// SourceURL is the URL of the best-matching document, or "Unknown source"
	// when no document matched.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// Snippet is a short excerpt from the source supporting the learning,
	// or "Source document not available" when no document matched.
	Snippet string `json:"source_snippet" yaml:"source_snippet"`

	// Confidence is reserved for a scoring step not implemented here.
	// It stays zero until such a step sets it.
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// ResearchProgress is a point-in-time snapshot of a research run, emitted to
// the progress callback as branches complete. Counters only increase.
type ResearchProgress struct {
	CurrentDepth     int    `json:"current_depth" yaml:"current_depth"`
	TotalDepth       int    `json:"total_depth" yaml:"total_depth"`
	CurrentBreadth   int    `json:"current_breadth" yaml:"current_breadth"`
	TotalBreadth     int    `json:"total_breadth" yaml:"total_breadth"`
	CurrentQuery     string `json:"current_query" yaml:"current_query"`
	TotalQueries     int    `json:"total_queries" yaml:"total_queries"`
	CompletedQueries int    `json:"completed_queries" yaml:"completed_queries"`
}

// ResearchResult is returned by every scheduler invocation, root or
// recursive. Learnings and VisitedURLs are duplicate-free in order of first
// appearance; Provenance is a plain concatenation across branches and may
// carry more entries than Learnings when two branches produced the same
// learning from different sources.
type ResearchResult struct {
	Learnings   []string           `json:"learnings" yaml:"learnings"`
	VisitedURLs []string           `json:"visited_urls" yaml:"visited_urls"`
	Provenance  []ProvenanceRecord `json:"provenance,omitempty" yaml:"provenance,omitempty"`
}

// ProcessingStats summarizes one retrieval pipeline run: the document count
// after each stage and the per-stage removal counts derived from them.
type ProcessingStats struct {
	InitialCount       int `json:"initial_count" yaml:"initial_count"`
	AfterRanking       int `json:"after_ranking" yaml:"after_ranking"`
	AfterDeduplication int `json:"after_deduplication" yaml:"after_deduplication"`
	AfterFreshness     int `json:"after_freshness" yaml:"after_freshness"`
	DuplicatesRemoved  int `json:"duplicates_removed" yaml:"duplicates_removed"`
	OutdatedRemoved    int `json:"outdated_removed" yaml:"outdated_removed"`
}
