// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provenance

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

var pythonDocs = []types.Document{
	{
		URL: "https://example.com/python-3.12",
		Text: "Python 3.12 was released in October 2023 with significant performance improvements. " +
			"The new version includes better error messages with more precise locations. " +
			"Performance benchmarks show 10-60% faster execution compared to Python 3.11. " +
			"The type system has been enhanced with new syntax for generic types.",
	},
	{
		URL: "https://example.com/python-features",
		Text: "Python 3.12 introduces f-string improvements allowing inline debugging. " +
			"The PEP 701 proposal adds more flexibility to f-string syntax. " +
			"Error messages now include color coding in the terminal for better readability. " +
			"The interpreter startup time has been reduced by 20%.",
	},
}

// --- key terms ---

func TestKeyTerms(t *testing.T) {
	tests := []struct {
		name     string
		learning string
		want     []string
	}{
		{
			"drops short words and stop words",
			"This is about the benchmarks from 2023 results",
			[]string{"benchmarks", "2023", "results"},
		},
		{
			"case folds",
			"Python BENCHMARKS",
			[]string{"python", "benchmarks"},
		},
		{
			"nothing usable",
			"it is so and is it",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keyTerms(tt.learning)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("keyTerms(%q) = %v, want %v", tt.learning, got, tt.want)
			}
		})
	}
}

// --- attribution ---

func TestAttributeOneRecordPerLearningInOrder(t *testing.T) {
	learnings := []string{
		"Python 3.12 shows 10-60% performance improvement over Python 3.11",
		"F-strings in Python 3.12 support improved debugging capabilities",
	}

	records := Attribute(learnings, pythonDocs)

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for i, record := range records {
		if record.Learning != learnings[i] {
			t.Errorf("record %d learning = %q, want %q", i, record.Learning, learnings[i])
		}
	}
	if records[0].SourceURL != "https://example.com/python-3.12" {
		t.Errorf("performance learning attributed to %s", records[0].SourceURL)
	}
	if records[1].SourceURL != "https://example.com/python-features" {
		t.Errorf("f-string learning attributed to %s", records[1].SourceURL)
	}
}

func TestAttributeSnippetContainsBestSentence(t *testing.T) {
	records := Attribute(
		[]string{"Python 3.12 shows 10-60% performance improvement over Python 3.11"},
		pythonDocs,
	)

	// The opening sentence matches four terms (python twice, performance,
	// improvement via "improvements"), beating the benchmarks sentence.
	snippet := records[0].Snippet
	if !strings.Contains(snippet, "released in October 2023") {
		t.Errorf("snippet does not contain best-matching sentence: %q", snippet)
	}
	// The following sentence rides along up to the sentence budget.
	if !strings.Contains(snippet, "error messages") {
		t.Errorf("snippet missing trailing context sentence: %q", snippet)
	}
}

func TestAttributeUnmatchedLearningGetsPlaceholders(t *testing.T) {
	records := Attribute(
		[]string{"quantum chromodynamics lattice simulations"},
		pythonDocs,
	)

	if records[0].SourceURL != UnknownSource {
		t.Errorf("SourceURL = %q, want %q", records[0].SourceURL, UnknownSource)
	}
	if records[0].Snippet != NoSnippet {
		t.Errorf("Snippet = %q, want %q", records[0].Snippet, NoSnippet)
	}
}

func TestAttributeEmptyBatch(t *testing.T) {
	records := Attribute([]string{"anything at all here"}, nil)

	if records[0].SourceURL != UnknownSource || records[0].Snippet != NoSnippet {
		t.Errorf("empty batch should yield placeholders, got %+v", records[0])
	}
}

func TestAttributeNoKeyTermsFallsBackToFirstDocument(t *testing.T) {
	records := Attribute([]string{"it is so"}, pythonDocs)

	if records[0].SourceURL != pythonDocs[0].URL {
		t.Errorf("SourceURL = %q, want first document", records[0].SourceURL)
	}
	if !strings.HasPrefix(records[0].Snippet, "Python 3.12 was released") {
		t.Errorf("snippet should open with the document's first sentence: %q", records[0].Snippet)
	}
}

func TestAttributeConfidenceUnset(t *testing.T) {
	records := Attribute([]string{"Python performance benchmarks"}, pythonDocs)
	if records[0].Confidence != 0 {
		t.Errorf("Confidence = %f, want unset (0)", records[0].Confidence)
	}
}

// --- sentence handling ---

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"basic",
			"First one. Second one! Third one?",
			[]string{"First one.", "Second one!", "Third one?"},
		},
		{
			"decimal point not a boundary",
			"Version 3.12 is here. It is fast.",
			[]string{"Version 3.12 is here.", "It is fast."},
		},
		{
			"ellipsis ends a sentence",
			"Wait... done. Next.",
			[]string{"Wait...", "done.", "Next."},
		},
		{
			"no terminator",
			"just a fragment",
			[]string{"just a fragment"},
		},
		{
			"empty",
			"",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSentences(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTruncateSnippet(t *testing.T) {
	long := strings.Repeat("word ", 100) // 500 chars
	got := truncateSnippet(long)

	if len(got) > snippetBudget+3 {
		t.Errorf("truncated snippet is %d chars, budget is %d", len(got), snippetBudget)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated snippet missing ellipsis: %q", got)
	}
	if strings.HasSuffix(strings.TrimSuffix(got, "..."), " ") {
		t.Errorf("truncation left a trailing space: %q", got)
	}

	short := "fits fine"
	if truncateSnippet(short) != short {
		t.Errorf("short snippet was modified")
	}
}

func TestTruncateSnippetKeepsRunesIntact(t *testing.T) {
	// No whitespace anywhere, and a two-byte rune straddling the budget
	// boundary, so the cut must back off to the rune start.
	long := strings.Repeat("a", snippetBudget-1) + "é" + strings.Repeat("b", 10)

	got := truncateSnippet(long)

	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
	want := strings.Repeat("a", snippetBudget-1) + "..."
	if got != want {
		t.Errorf("truncated snippet = %d chars %q..., want cut before the split rune", len(got), got[:20])
	}
}

// --- formatting and export ---

func TestFormatMarkdown(t *testing.T) {
	records := []types.ProvenanceRecord{
		{Learning: "A fact", SourceURL: "https://example.com/a", Snippet: "Evidence here."},
	}

	md := FormatMarkdown(records)

	for _, want := range []string{
		"## Learning #1",
		"**Learning:** A fact",
		"[https://example.com/a](https://example.com/a)",
		"> Evidence here.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestExportLoadJSONRoundTrip(t *testing.T) {
	records := []types.ProvenanceRecord{
		{Learning: "First", SourceURL: "https://example.com/1", Snippet: "one"},
		{Learning: "Second", SourceURL: UnknownSource, Snippet: NoSnippet},
	}
	path := filepath.Join(t.TempDir(), "provenance.json")

	if err := ExportJSON(records, path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	loaded, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if !reflect.DeepEqual(loaded, records) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", loaded, records)
	}
}
