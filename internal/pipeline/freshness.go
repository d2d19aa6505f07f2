// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"regexp"
	"strconv"
	"time"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

// freshnessScanChars bounds how much document text is scanned for dates.
const freshnessScanChars = 2000

// metadataDateLayouts are tried against the first 10 characters of a
// metadata date field, most specific first.
var metadataDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006",
}

// datePatterns match publication dates in document text, ordered from most
// to least specific; the bare four-digit year is the last resort. Each
// pattern captures the year in group 1.
var datePatterns = []*regexp.Regexp{
	// ISO-style: 2023-12-31 or 2023/12/31.
	regexp.MustCompile(`(20\d{2})[-/](0[1-9]|1[0-2])[-/](0[1-9]|[12]\d|3[01])`),
	// Month Day, Year: December 31, 2023.
	regexp.MustCompile(`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+(20\d{2})`),
	// Abbreviated month and year: Dec 2023.
	regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(20\d{2})`),
	// Bare year.
	regexp.MustCompile(`\b(20\d{2})\b`),
}

// filterByFreshness drops documents whose detected publication year is
// older than minYear. Documents with no detectable year are kept; kept
// documents with a detected year are annotated with it.
func filterByFreshness(docs []types.Document, minYear int) []types.Document {
	var fresh []types.Document
	for _, doc := range docs {
		year := extractYear(doc)
		switch {
		case year == 0:
			fresh = append(fresh, doc)
		case year >= minYear:
			doc.Year = year
			fresh = append(fresh, doc)
		}
	}
	return fresh
}

// extractYear determines a document's publication year: the metadata date
// field first, then a scan of the leading text taking the most recent
// plausible year. Returns 0 when nothing is detected.
func extractYear(doc types.Document) int {
	if doc.PublishedDate != "" {
		if year := parseMetadataYear(doc.PublishedDate); year != 0 {
			return year
		}
	}
	return scanTextForYear(doc.Text)
}

// parseMetadataYear tries each known layout against the first 10 characters
// of a metadata date string.
func parseMetadataYear(date string) int {
	if len(date) > 10 {
		date = date[:10]
	}
	for _, layout := range metadataDateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Year()
		}
	}
	return 0
}

// scanTextForYear collects every plausible year in the leading text and
// returns the maximum, on the theory that the most recent date near the top
// of a page is its publication date.
func scanTextForYear(text string) int {
	text = runePrefix(text, freshnessScanChars)
	currentYear := time.Now().Year()

	best := 0
	for _, pattern := range datePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			year, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if year >= 2000 && year <= currentYear && year > best {
				best = year
			}
		}
	}
	return best
}
