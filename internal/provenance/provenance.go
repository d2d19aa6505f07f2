// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provenance links learnings back to the documents that support
// them. Matching is lexical: a learning's key terms are intersected with
// each candidate document's vocabulary, and the best sentence of the
// winning document becomes the supporting snippet.
package provenance

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

const (
	// maxSentences is how many consecutive sentences a snippet may span.
	maxSentences = 2

	// snippetBudget is the snippet character limit before truncation.
	snippetBudget = 300

	// UnknownSource is the placeholder URL when no document matched.
	UnknownSource = "Unknown source"

	// NoSnippet is the placeholder snippet when no document matched.
	NoSnippet = "Source document not available"
)

// stopWords are common words excluded from key terms.
var stopWords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true, "have": true,
	"been": true, "were": true, "will": true, "their": true, "there": true,
	"about": true, "which": true, "when": true, "where": true,
}

var wordPattern = regexp.MustCompile(`\w{4,}`)

// Attribute produces one ProvenanceRecord per learning, in input order,
// matching each learning against the document batch it was derived from.
// Learnings that match no document get placeholder source and snippet.
func Attribute(learnings []string, docs []types.Document) []types.ProvenanceRecord {
	records := make([]types.ProvenanceRecord, 0, len(learnings))
	for _, learning := range learnings {
		records = append(records, attributeOne(learning, docs))
	}
	return records
}

func attributeOne(learning string, docs []types.Document) types.ProvenanceRecord {
	record := types.ProvenanceRecord{
		Learning:  learning,
		SourceURL: UnknownSource,
		Snippet:   NoSnippet,
	}

	terms := keyTerms(learning)
	if len(terms) == 0 {
		// Nothing to match on: fall back to the first document with content.
		for _, doc := range docs {
			if doc.Text == "" {
				continue
			}
			record.SourceURL = doc.URL
			record.Snippet = truncateSnippet(leadingSentences(doc.Text, maxSentences))
			break
		}
		return record
	}

	best := matchDocument(terms, docs)
	if best == nil {
		return record
	}

	record.SourceURL = best.URL
	record.Snippet = truncateSnippet(extractSnippet(terms, best.Text))
	return record
}

// keyTerms returns the learning's case-folded word tokens of length >= 4,
// excluding stop words.
func keyTerms(learning string) []string {
	var terms []string
	for _, word := range wordPattern.FindAllString(strings.ToLower(learning), -1) {
		if !stopWords[word] {
			terms = append(terms, word)
		}
	}
	return terms
}

// matchDocument returns the document whose vocabulary shares the most key
// terms with the learning. Only a strictly greater overlap displaces the
// current best, so ties go to the earliest document. Returns nil when no
// document has any overlap.
func matchDocument(terms []string, docs []types.Document) *types.Document {
	termSet := make(map[string]bool, len(terms))
	for _, t := range terms {
		termSet[t] = true
	}

	var best *types.Document
	bestScore := 0
	for i := range docs {
		if docs[i].Text == "" {
			continue
		}
		score := 0
		seen := make(map[string]bool)
		for _, word := range wordPattern.FindAllString(strings.ToLower(docs[i].Text), -1) {
			if termSet[word] && !seen[word] {
				seen[word] = true
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &docs[i]
		}
	}
	return best
}

// extractSnippet finds the sentence containing the most key terms and
// returns it together with the following sentences up to maxSentences.
// When no sentence scores above zero, the document's leading sentences are
// used instead.
func extractSnippet(terms []string, text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	bestScore := 0
	bestIdx := -1
	for i, sentence := range sentences {
		lower := strings.ToLower(sentence)
		score := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		bestIdx = 0
	}
	end := bestIdx + maxSentences
	if end > len(sentences) {
		end = len(sentences)
	}
	return strings.TrimSpace(strings.Join(sentences[bestIdx:end], " "))
}

// leadingSentences returns the first n sentences of text joined together.
func leadingSentences(text string, n int) string {
	sentences := splitSentences(text)
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	return strings.TrimSpace(strings.Join(sentences, " "))
}

// splitSentences breaks text after runs of sentence-ending punctuation
// followed by whitespace. The terminator stays with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		b.WriteRune(runes[i])
		if isTerminator(runes[i]) {
			// Consume any further terminators ("..." or "?!").
			for i+1 < len(runes) && isTerminator(runes[i+1]) {
				i++
				b.WriteRune(runes[i])
			}
			if i+1 >= len(runes) || isSpace(runes[i+1]) {
				if s := strings.TrimSpace(b.String()); s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// truncateSnippet enforces the snippet character budget, cutting at the
// last whitespace before the limit and appending an ellipsis. The cut
// backs off to a rune boundary so a multi-byte character is never split.
func truncateSnippet(snippet string) string {
	if len(snippet) <= snippetBudget {
		return snippet
	}
	limit := snippetBudget
	for limit > 0 && !utf8.RuneStart(snippet[limit]) {
		limit--
	}
	cut := snippet[:limit]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
