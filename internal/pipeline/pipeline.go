// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline post-processes retrieved documents for one query:
// semantic ranking against the query, near-duplicate removal, and freshness
// filtering, in that fixed order. Each stage is independently skippable and
// a stage failure degrades to the pre-stage document list rather than
// aborting the run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Finance-LLMs/deep-research/internal/embed"
	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// rankPrefixChars bounds how much of each document is embedded for ranking.
const rankPrefixChars = 1000

// Processor runs the post-processing stages. Construct once with
// NewProcessor and inject wherever document batches need cleaning; the
// embedder it owns is the only external dependency.
type Processor struct {
	embedder embed.Embedder
	cfg      types.PipelineConfig
	logger   *zap.Logger
}

// NewProcessor creates a Processor. Zero-value config fields fall back to
// defaults: dedup threshold 0.9, minimum year 2020.
func NewProcessor(embedder embed.Embedder, cfg types.PipelineConfig, logger *zap.Logger) *Processor {
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = 0.9
	}
	if cfg.MinYear == 0 {
		cfg.MinYear = 2020
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{embedder: embedder, cfg: cfg, logger: logger}
}

// Process runs the enabled stages over docs in order and returns the
// surviving documents with per-stage counts. A failing stage logs a warning
// and passes its input through unchanged; Process itself fails only when
// the context is cancelled.
func (p *Processor) Process(ctx context.Context, docs []types.Document, query string) ([]types.Document, types.ProcessingStats, error) {
	stats := types.ProcessingStats{InitialCount: len(docs)}

	if !p.cfg.SkipRanking && len(docs) > 0 {
		ranked, err := p.rank(ctx, docs, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			p.logger.Warn("ranking failed, keeping original order", zap.Error(err))
		} else {
			docs = ranked
		}
	}
	stats.AfterRanking = len(docs)

	if !p.cfg.SkipDedup && len(docs) > 1 {
		unique, err := p.deduplicate(ctx, docs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			p.logger.Warn("deduplication failed, keeping all documents", zap.Error(err))
		} else {
			docs = unique
		}
	}
	stats.AfterDeduplication = len(docs)

	if !p.cfg.SkipFreshness && len(docs) > 0 {
		docs = filterByFreshness(docs, p.cfg.MinYear)
	}
	stats.AfterFreshness = len(docs)

	stats.DuplicatesRemoved = stats.AfterRanking - stats.AfterDeduplication
	stats.OutdatedRemoved = stats.AfterDeduplication - stats.AfterFreshness

	p.logger.Debug("retrieval post-processing complete",
		zap.Int("initial", stats.InitialCount),
		zap.Int("final", stats.AfterFreshness),
		zap.Int("duplicates_removed", stats.DuplicatesRemoved),
		zap.Int("outdated_removed", stats.OutdatedRemoved))

	return docs, stats, nil
}

// rank sorts docs by cosine similarity between the query embedding and an
// embedding of each document's leading text, highest first, and attaches
// the score to each document.
func (p *Processor) rank(ctx context.Context, docs []types.Document, query string) ([]types.Document, error) {
	queryVec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = runePrefix(doc.Text, rankPrefixChars)
	}

	docVecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}

	ranked := make([]types.Document, len(docs))
	copy(ranked, docs)
	for i := range ranked {
		ranked[i].Score = embed.Cosine(queryVec, docVecs[i])
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// deduplicate removes near-duplicates by full-text embedding similarity.
// Scanning in order, a document is kept unless an earlier kept document
// already exceeds the threshold against it, so the survivor of each
// similarity cluster is its earliest member.
func (p *Processor) deduplicate(ctx context.Context, docs []types.Document) ([]types.Document, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}

	removed := make([]bool, len(docs))
	var unique []types.Document
	for i := range docs {
		if removed[i] {
			continue
		}
		unique = append(unique, docs[i])
		for j := i + 1; j < len(docs); j++ {
			if !removed[j] && embed.Cosine(vecs[i], vecs[j]) > p.cfg.DedupThreshold {
				removed[j] = true
			}
		}
	}
	return unique, nil
}

// runePrefix returns at most n leading bytes of text, backed off so a
// multi-byte rune is never split at the cut.
func runePrefix(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
