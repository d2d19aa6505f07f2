// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ai turns prompts into structured research artifacts: sub-queries,
// learnings with follow-up questions, reports, and short answers. The
// Backend interface abstracts the completion provider so tests can supply
// a mock.
package ai

import (
	"context"
	"unicode/utf8"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// Backend is the completion service consumed by the research scheduler.
// Every method must fail cleanly on timeout or malformed output; callers
// treat a failure as an empty result for that call, not a fatal error.
type Backend interface {
	// GenerateQueries expands a research prompt into at most numQueries
	// search queries, each with a stated research goal. Prior learnings,
	// when present, steer the queries toward more specific ground.
	GenerateQueries(ctx context.Context, prompt string, numQueries int, learnings []string) ([]types.Query, error)

	// ExtractLearnings distills document contents retrieved for a query
	// into at most numLearnings atomic insights and at most numFollowUp
	// follow-up questions for the next research level.
	ExtractLearnings(ctx context.Context, query string, contents []string, numLearnings, numFollowUp int) (Extraction, error)

	// WriteReport composes a detailed Markdown report answering the user's
	// prompt from the accumulated learnings.
	WriteReport(ctx context.Context, prompt string, learnings []string) (string, error)

	// WriteAnswer produces a short, direct answer to the user's prompt from
	// the accumulated learnings.
	WriteAnswer(ctx context.Context, prompt string, learnings []string) (string, error)
}

// Extraction is the structured result of one learning-extraction call.
type Extraction struct {
	Learnings         []string `json:"learnings"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// TrimPrompt truncates text to at most limit bytes, so oversized page
// content cannot blow the completion context window. The cut backs off to
// a rune boundary so a multi-byte character is never split. A limit of 0
// means no trimming.
func TrimPrompt(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
