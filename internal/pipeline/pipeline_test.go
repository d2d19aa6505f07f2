// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// fakeEmbedder produces deterministic vectors by counting occurrences of
// vocabulary words, so similarity reflects term overlap. Identical texts
// always embed identically.
type fakeEmbedder struct {
	vocab []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(f.vocab))
	for i, word := range f.vocab {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func testProcessor(embedder *fakeEmbedder, cfg types.PipelineConfig) *Processor {
	return NewProcessor(embedder, cfg, nil)
}

// --- ranking ---

func TestRankPlacesMostRelevantFirst(t *testing.T) {
	docs := []types.Document{
		{URL: "https://example.com/dogs", Text: "Dogs are loyal pets. Dogs love to play fetch."},
		{URL: "https://example.com/cats", Text: "Cats are independent animals. Cats enjoy napping."},
		{URL: "https://example.com/pets", Text: "Cats and dogs are both popular pets."},
	}
	p := testProcessor(&fakeEmbedder{vocab: []string{"cats", "dogs"}}, types.PipelineConfig{
		SkipDedup:     true,
		SkipFreshness: true,
	})

	out, stats, err := p.Process(context.Background(), docs, "information about cats")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out[0].URL != "https://example.com/cats" {
		t.Errorf("top document = %s, want cats page", out[0].URL)
	}
	if out[0].Score <= out[1].Score || out[1].Score <= out[2].Score {
		t.Errorf("scores not descending: %f, %f, %f", out[0].Score, out[1].Score, out[2].Score)
	}
	if stats.AfterRanking != 3 {
		t.Errorf("AfterRanking = %d, want 3", stats.AfterRanking)
	}
}

func TestRankFailureKeepsOriginalOrder(t *testing.T) {
	docs := []types.Document{
		{URL: "a", Text: "first"},
		{URL: "b", Text: "second"},
	}
	p := testProcessor(&fakeEmbedder{err: errors.New("provider down")}, types.PipelineConfig{
		SkipDedup:     true,
		SkipFreshness: true,
	})

	out, stats, err := p.Process(context.Background(), docs, "anything")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 2 || out[0].URL != "a" || out[1].URL != "b" {
		t.Errorf("documents reordered or lost on embedder failure: %+v", out)
	}
	if stats.AfterRanking != 2 {
		t.Errorf("AfterRanking = %d, want 2", stats.AfterRanking)
	}
}

// --- deduplication ---

func TestDeduplicateKeepsEarlierOfIdenticalPair(t *testing.T) {
	docs := []types.Document{
		{URL: "u0", Text: "alpha alpha alpha"},
		{URL: "u1", Text: "beta beta beta"},
		{URL: "u2", Text: "gamma gamma gamma"},
		{URL: "u3", Text: "beta beta beta"}, // identical to u1
		{URL: "u4", Text: "delta delta delta"},
	}
	p := testProcessor(&fakeEmbedder{vocab: []string{"alpha", "beta", "gamma", "delta"}}, types.PipelineConfig{
		DedupThreshold: 0.9,
		SkipRanking:    true,
		SkipFreshness:  true,
	})

	out, stats, err := p.Process(context.Background(), docs, "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d documents, want 4", len(out))
	}
	for _, doc := range out {
		if doc.URL == "u3" {
			t.Error("later duplicate u3 survived; earlier u1 should be the representative")
		}
	}
	if stats.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d, want 1", stats.DuplicatesRemoved)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	docs := []types.Document{
		{URL: "u0", Text: "alpha alpha"},
		{URL: "u1", Text: "alpha alpha"},
		{URL: "u2", Text: "beta beta"},
	}
	p := testProcessor(&fakeEmbedder{vocab: []string{"alpha", "beta"}}, types.PipelineConfig{
		DedupThreshold: 0.9,
		SkipRanking:    true,
		SkipFreshness:  true,
	})

	once, _, err := p.Process(context.Background(), docs, "")
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	twice, stats, err := p.Process(context.Background(), once, "")
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(twice) != len(once) {
		t.Errorf("second pass removed %d more documents; dedup should be idempotent", len(once)-len(twice))
	}
	if stats.DuplicatesRemoved != 0 {
		t.Errorf("DuplicatesRemoved = %d on second pass, want 0", stats.DuplicatesRemoved)
	}
}

// --- stage counts ---

func TestStageCountsMonotonic(t *testing.T) {
	docs := []types.Document{
		{URL: "u0", Text: "alpha research published in 2024"},
		{URL: "u1", Text: "alpha research published in 2024"}, // duplicate of u0
		{URL: "u2", Text: "beta overview from 2010, long outdated"},
		{URL: "u3", Text: "gamma notes with no date at all"},
	}
	p := testProcessor(&fakeEmbedder{vocab: []string{"alpha", "beta", "gamma"}}, types.PipelineConfig{
		DedupThreshold: 0.9,
		MinYear:        2020,
	})

	out, stats, err := p.Process(context.Background(), docs, "alpha")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if stats.InitialCount != 4 {
		t.Errorf("InitialCount = %d, want 4", stats.InitialCount)
	}
	if stats.AfterRanking < stats.AfterDeduplication || stats.AfterDeduplication < stats.AfterFreshness {
		t.Errorf("counts not monotonic: %+v", stats)
	}
	if stats.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d, want 1", stats.DuplicatesRemoved)
	}
	if stats.OutdatedRemoved != 1 {
		t.Errorf("OutdatedRemoved = %d, want 1", stats.OutdatedRemoved)
	}
	if len(out) != stats.AfterFreshness {
		t.Errorf("returned %d documents, stats say %d", len(out), stats.AfterFreshness)
	}
}

func TestSkippedStagesLeaveCountsUnchanged(t *testing.T) {
	docs := []types.Document{
		{URL: "u0", Text: "alpha alpha"},
		{URL: "u1", Text: "alpha alpha"},
		{URL: "u2", Text: "overview from 2005"},
	}
	p := testProcessor(&fakeEmbedder{vocab: []string{"alpha"}}, types.PipelineConfig{
		SkipRanking:   true,
		SkipDedup:     true,
		SkipFreshness: true,
	})

	out, stats, err := p.Process(context.Background(), docs, "alpha")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 3 {
		t.Errorf("got %d documents, want all 3", len(out))
	}
	if stats.AfterRanking != 3 || stats.AfterDeduplication != 3 || stats.AfterFreshness != 3 {
		t.Errorf("skipped stages changed counts: %+v", stats)
	}
	if stats.DuplicatesRemoved != 0 || stats.OutdatedRemoved != 0 {
		t.Errorf("skipped stages recorded removals: %+v", stats)
	}
}

func TestProcessEmptyBatch(t *testing.T) {
	p := testProcessor(&fakeEmbedder{vocab: []string{"alpha"}}, types.PipelineConfig{})

	out, stats, err := p.Process(context.Background(), nil, "anything")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d documents from empty batch", len(out))
	}
	if stats.InitialCount != 0 || stats.AfterFreshness != 0 {
		t.Errorf("unexpected stats for empty batch: %+v", stats)
	}
}

func TestRunePrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"shorter than limit", "short", 10, "short"},
		{"exact limit", "exact", 5, "exact"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"cut lands mid-rune", "héllo", 2, "h"},
		{"cut lands on rune boundary", "héllo", 3, "hé"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := runePrefix(tc.text, tc.n)
			if got != tc.want {
				t.Errorf("runePrefix(%q, %d) = %q, want %q", tc.text, tc.n, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("runePrefix produced invalid UTF-8: %q", got)
			}
		})
	}
}
