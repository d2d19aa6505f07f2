// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research runs the recursive research scheduler: it expands a
// prompt into search queries, fans the queries out concurrently, distills
// retrieved pages into learnings, and recurses on follow-up directions
// with halved breadth until depth is exhausted.
package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Finance-LLMs/deep-research/internal/ai"
	"github.com/Finance-LLMs/deep-research/internal/provenance"
	"github.com/Finance-LLMs/deep-research/internal/search"
	"github.com/Finance-LLMs/deep-research/pkg/types"
)

const (
	defaultConcurrency  = 2
	defaultSearchLimit  = 5
	defaultScrapeDelay  = 1 * time.Second
	defaultMaxLearnings = 3
	defaultContentLimit = 25000
)

// DocumentProcessor post-processes scraped documents before learning
// extraction. Satisfied by pipeline.Processor.
type DocumentProcessor interface {
	Process(ctx context.Context, docs []types.Document, query string) ([]types.Document, types.ProcessingStats, error)
}

// Engine holds the collaborators for a research run. All fields except
// Processor and Logger are required.
type Engine struct {
	AI        ai.Backend
	Search    search.Provider
	Scraper   search.Scraper
	Processor DocumentProcessor
	Config    types.ResearchConfig
	Logger    *zap.Logger
}

// Request describes one research run.
type Request struct {
	// Query is the research prompt.
	Query string

	// Breadth is the number of sub-queries generated at the root level.
	// Each level below the root halves it (minimum 1).
	Breadth int

	// Depth is the number of recursion levels. Zero means a single level
	// with no follow-up recursion.
	Depth int

	// Learnings and VisitedURLs seed the run with prior results, so a run
	// can continue where an earlier one stopped.
	Learnings   []string
	VisitedURLs []string

	// OnProgress, when set, receives a snapshot after every branch
	// completion. Called from scheduler goroutines; must not block.
	OnProgress func(types.ResearchProgress)
}

// branchOutcome carries one sub-query's result across the fan-out barrier.
type branchOutcome struct {
	query  types.Query
	result types.ResearchResult
	err    error
}

// Research runs the full recursive research tree and returns the merged
// learnings, visited URLs, and provenance records. Individual branch
// failures are logged and skipped; the run fails only on invalid arguments
// or context cancellation.
func (e *Engine) Research(ctx context.Context, req Request) (types.ResearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return types.ResearchResult{}, fmt.Errorf("research query is empty")
	}
	if req.Breadth < 1 {
		return types.ResearchResult{}, fmt.Errorf("breadth must be at least 1, got %d", req.Breadth)
	}
	if req.Depth < 0 {
		return types.ResearchResult{}, fmt.Errorf("depth must not be negative, got %d", req.Depth)
	}

	tracker := newProgressTracker(req.Depth, req.Breadth, req.OnProgress)
	return e.research(ctx, req.Query, req.Breadth, req.Depth, req.Learnings, req.VisitedURLs, tracker)
}

// research runs one level of the tree and recurses into follow-up
// directions. It is called with the accumulated learnings and URLs of the
// path from the root, and returns that accumulation extended with
// everything this subtree found.
func (e *Engine) research(ctx context.Context, query string, breadth, depth int, learnings, visitedURLs []string, tracker *progressTracker) (types.ResearchResult, error) {
	queries, err := e.AI.GenerateQueries(ctx, query, breadth, learnings)
	if err != nil {
		if ctx.Err() != nil {
			return types.ResearchResult{}, ctx.Err()
		}
		e.logger().Warn("query generation failed, stopping expansion",
			zap.String("query", query), zap.Error(err))
		queries = nil
	}
	if len(queries) == 0 {
		return types.ResearchResult{
			Learnings:   learnings,
			VisitedURLs: visitedURLs,
		}, nil
	}

	tracker.expanded(len(queries), queries[0].Text)

	// Each level gets its own gate, so a depth-d tree can have up to
	// concurrency^d branches in flight.
	concurrency := e.Config.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	gate := semaphore.NewWeighted(int64(concurrency))

	outcomes := make([]branchOutcome, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q types.Query) {
			defer wg.Done()
			if err := gate.Acquire(ctx, 1); err != nil {
				outcomes[i] = branchOutcome{query: q, err: err}
				return
			}
			defer gate.Release(1)
			result, err := e.runBranch(ctx, q, breadth, depth, learnings, visitedURLs, tracker)
			outcomes[i] = branchOutcome{query: q, result: result, err: err}
		}(i, q)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return types.ResearchResult{}, ctx.Err()
	}

	// Merge branch results in query order, skipping failed branches.
	mergedLearnings := newOrderedSet(learnings)
	mergedURLs := newOrderedSet(visitedURLs)
	var records []types.ProvenanceRecord
	for _, o := range outcomes {
		if o.err != nil {
			e.logger().Warn("research branch failed",
				zap.String("query", o.query.Text), zap.Error(o.err))
			continue
		}
		mergedLearnings.addAll(o.result.Learnings)
		mergedURLs.addAll(o.result.VisitedURLs)
		records = append(records, o.result.Provenance...)
	}

	return types.ResearchResult{
		Learnings:   mergedLearnings.items(),
		VisitedURLs: mergedURLs.items(),
		Provenance:  records,
	}, nil
}

// runBranch executes one sub-query: search, scrape, post-process, extract
// learnings, and recurse when depth remains.
func (e *Engine) runBranch(ctx context.Context, q types.Query, breadth, depth int, learnings, visitedURLs []string, tracker *progressTracker) (types.ResearchResult, error) {
	searchLimit := e.Config.SearchLimit
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}

	items, err := e.Search.Search(ctx, q.Text, searchLimit)
	if err != nil {
		return types.ResearchResult{}, fmt.Errorf("searching %q: %w", q.Text, err)
	}

	docs, branchURLs, err := e.scrapeAll(ctx, items)
	if err != nil {
		return types.ResearchResult{}, err
	}

	if e.Processor != nil && len(docs) > 0 {
		processed, stats, procErr := e.Processor.Process(ctx, docs, q.Text)
		if procErr != nil {
			if ctx.Err() != nil {
				return types.ResearchResult{}, ctx.Err()
			}
			e.logger().Warn("document processing failed, using raw documents",
				zap.String("query", q.Text), zap.Error(procErr))
		} else {
			e.logger().Debug("documents processed",
				zap.String("query", q.Text),
				zap.Int("initial", stats.InitialCount),
				zap.Int("kept", stats.AfterFreshness),
				zap.Int("duplicates_removed", stats.DuplicatesRemoved),
				zap.Int("outdated_removed", stats.OutdatedRemoved))
			docs = processed
		}
	}

	maxLearnings := e.Config.MaxLearnings
	if maxLearnings <= 0 {
		maxLearnings = defaultMaxLearnings
	}
	contentLimit := e.Config.ContentLimit
	if contentLimit <= 0 {
		contentLimit = defaultContentLimit
	}
	newBreadth := breadth / 2
	if newBreadth < 1 {
		newBreadth = 1
	}
	newDepth := depth - 1

	contents := make([]string, 0, len(docs))
	for _, d := range docs {
		contents = append(contents, ai.TrimPrompt(d.Text, contentLimit))
	}

	var extraction ai.Extraction
	if len(contents) > 0 {
		extraction, err = e.AI.ExtractLearnings(ctx, q.Text, contents, maxLearnings, newBreadth)
		if err != nil {
			return types.ResearchResult{}, fmt.Errorf("extracting learnings for %q: %w", q.Text, err)
		}
	}
	records := provenance.Attribute(extraction.Learnings, docs)

	branchLearnings := newOrderedSet(learnings)
	branchLearnings.addAll(extraction.Learnings)
	mergedURLs := newOrderedSet(visitedURLs)
	mergedURLs.addAll(branchURLs)

	if newDepth <= 0 {
		tracker.branchDone(0, newBreadth, q.Text)
		return types.ResearchResult{
			Learnings:   branchLearnings.items(),
			VisitedURLs: mergedURLs.items(),
			Provenance:  records,
		}, nil
	}

	tracker.branchDone(newDepth, newBreadth, q.Text)

	nextQuery := fmt.Sprintf("Previous research goal: %s\nFollow-up research directions: %s",
		q.ResearchGoal, strings.Join(extraction.FollowUpQuestions, "\n"))

	child, err := e.research(ctx, nextQuery, newBreadth, newDepth, branchLearnings.items(), mergedURLs.items(), tracker)
	if err != nil {
		return types.ResearchResult{}, err
	}
	child.Provenance = append(records, child.Provenance...)
	return child, nil
}

// scrapeAll fetches each search hit with a fixed delay between requests.
// Failed or empty scrapes are skipped; their URLs still count as visited.
func (e *Engine) scrapeAll(ctx context.Context, items []search.Item) ([]types.Document, []string, error) {
	scrapeDelay := e.Config.ScrapeDelay
	if scrapeDelay <= 0 {
		scrapeDelay = defaultScrapeDelay
	}

	var docs []types.Document
	var urls []string
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		urls = append(urls, item.URL)

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(scrapeDelay):
		}

		page, err := e.Scraper.Scrape(ctx, item.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			e.logger().Warn("scrape failed, skipping page",
				zap.String("url", item.URL), zap.Error(err))
			continue
		}
		if strings.TrimSpace(page.Markdown) == "" {
			continue
		}
		docs = append(docs, types.Document{
			URL:           item.URL,
			Text:          page.Markdown,
			PublishedDate: page.PublishedDate,
		})
	}
	return docs, urls, nil
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// orderedSet keeps strings unique in order of first insertion.
type orderedSet struct {
	seen map[string]bool
	list []string
}

func newOrderedSet(seed []string) *orderedSet {
	s := &orderedSet{seen: make(map[string]bool, len(seed))}
	s.addAll(seed)
	return s
}

func (s *orderedSet) addAll(items []string) {
	for _, item := range items {
		if s.seen[item] {
			continue
		}
		s.seen[item] = true
		s.list = append(s.list, item)
	}
}

func (s *orderedSet) items() []string { return s.list }
