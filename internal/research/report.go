// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/Finance-LLMs/deep-research/internal/provenance"
	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// WriteReport composes the final Markdown report for a completed run,
// appending the provenance section and the list of visited sources.
func (e *Engine) WriteReport(ctx context.Context, prompt string, result types.ResearchResult) (string, error) {
	report, err := e.AI.WriteReport(ctx, prompt, result.Learnings)
	if err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	var b strings.Builder
	b.WriteString(report)

	if len(result.Provenance) > 0 {
		b.WriteString("\n\n---\n\n")
		b.WriteString(provenance.FormatMarkdown(result.Provenance))
	}

	if len(result.VisitedURLs) > 0 {
		b.WriteString("\n\n## Sources\n\n")
		for _, url := range result.VisitedURLs {
			b.WriteString("- " + url + "\n")
		}
	}
	return b.String(), nil
}

// WriteAnswer produces a short, exact answer to the prompt from the run's
// learnings.
func (e *Engine) WriteAnswer(ctx context.Context, prompt string, result types.ResearchResult) (string, error) {
	answer, err := e.AI.WriteAnswer(ctx, prompt, result.Learnings)
	if err != nil {
		return "", fmt.Errorf("writing answer: %w", err)
	}
	return answer, nil
}
