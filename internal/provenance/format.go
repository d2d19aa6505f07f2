// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provenance

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// FormatMarkdown renders provenance records as a Markdown section listing
// each learning with its source link and supporting evidence.
func FormatMarkdown(records []types.ProvenanceRecord) string {
	var b strings.Builder
	b.WriteString("# Research Learnings with Provenance\n\n")
	for i, record := range records {
		fmt.Fprintf(&b, "## Learning #%d\n\n", i+1)
		fmt.Fprintf(&b, "**Learning:** %s\n\n", record.Learning)
		fmt.Fprintf(&b, "**Source:** [%s](%s)\n\n", record.SourceURL, record.SourceURL)
		fmt.Fprintf(&b, "**Supporting Evidence:**\n> %s\n", record.Snippet)
		if record.Confidence > 0 {
			fmt.Fprintf(&b, "\n*Confidence: %.0f%%*\n", record.Confidence*100)
		}
		b.WriteString("\n---\n\n")
	}
	return b.String()
}

// exportFile is the JSON export envelope.
type exportFile struct {
	Learnings      []types.ProvenanceRecord `json:"learnings"`
	TotalLearnings int                      `json:"total_learnings"`
}

// ExportJSON writes provenance records to a JSON file.
func ExportJSON(records []types.ProvenanceRecord, path string) error {
	data, err := json.MarshalIndent(exportFile{
		Learnings:      records,
		TotalLearnings: len(records),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling provenance: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing provenance file: %w", err)
	}
	return nil
}

// LoadJSON reads provenance records from a JSON file written by ExportJSON.
func LoadJSON(path string) ([]types.ProvenanceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provenance file: %w", err)
	}
	var file exportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing provenance file: %w", err)
	}
	return file.Learnings, nil
}
