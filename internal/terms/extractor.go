// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package terms

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"docconform/internal/logging"
)

// Scoring tunes the confidence adjustments applied to rule matches.
type Scoring struct {
	LongMatchBonus     float64 // added when the full match exceeds 50 characters
	GroupAbsentPenalty float64 // subtracted when the value group did not participate
	ContextChars       int     // evidence snippet radius around the match
}

// DefaultScoring returns the adjustments the default catalog was calibrated with.
func DefaultScoring() Scoring {
	return Scoring{
		LongMatchBonus:     0.05,
		GroupAbsentPenalty: 0.10,
		ContextChars:       100,
	}
}

// ExtractorOptions configures an Extractor.
type ExtractorOptions struct {
	Rules   []Rule  // nil means DefaultCatalog()
	Scoring Scoring // zero fields are filled from DefaultScoring()
	Logger  *slog.Logger
}

// Extractor applies a rule catalog to document pages.
type Extractor struct {
	rules   []Rule
	scoring Scoring
	logger  *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ExtractorOptions) *Extractor {
	rules := opts.Rules
	if rules == nil {
		rules = DefaultCatalog()
	}
	scoring := opts.Scoring
	defaults := DefaultScoring()
	if scoring.LongMatchBonus == 0 {
		scoring.LongMatchBonus = defaults.LongMatchBonus
	}
	if scoring.GroupAbsentPenalty == 0 {
		scoring.GroupAbsentPenalty = defaults.GroupAbsentPenalty
	}
	if scoring.ContextChars == 0 {
		scoring.ContextChars = defaults.ContextChars
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Extractor{rules: rules, scoring: scoring, logger: logger}
}

// Fingerprint identifies the active rule catalog and scoring, so cached
// extraction results go stale when either changes.
func (e *Extractor) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%v|%v|%d\n", e.scoring.LongMatchBonus, e.scoring.GroupAbsentPenalty, e.scoring.ContextChars)
	for _, rule := range e.rules {
		fmt.Fprintf(h, "%s|%d|%v|%t\n", rule.Key, rule.ExtractGroup, rule.ConfidenceBase, rule.BooleanPresence)
		for _, pattern := range rule.Patterns {
			fmt.Fprintln(h, pattern.String())
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// pageRange maps a half-open byte range of the combined text to a page.
type pageRange struct {
	page  int
	start int
	end   int
}

// Extract runs every rule against the combined page text and returns at
// most one term per rule key. For each rule, all matches of all patterns
// are scored and the highest-confidence one wins; earlier patterns and
// earlier positions win ties. Terms are returned in catalog order.
func (e *Extractor) Extract(pages []Page, source Source) []Term {
	var combined strings.Builder
	ranges := make([]pageRange, 0, len(pages))
	for _, p := range pages {
		start := combined.Len()
		combined.WriteString(p.Text)
		combined.WriteString("\n\n")
		ranges = append(ranges, pageRange{page: p.Number, start: start, end: combined.Len()})
	}
	text := combined.String()

	var extracted []Term
	found := make(map[string]bool)

	for _, rule := range e.rules {
		if found[rule.Key] {
			continue
		}

		group := rule.ExtractGroup
		if group < 1 {
			group = 1
		}

		var best []int
		bestConfidence := 0.0

		for _, pattern := range rule.Patterns {
			for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
				confidence := rule.ConfidenceBase

				// Longer matches carry more surrounding context
				if m[1]-m[0] > 50 {
					confidence += e.scoring.LongMatchBonus
				}

				// Partial matches where the value group dropped out are weaker
				if last := lastParticipatingGroup(m); last > 0 && last < group {
					confidence -= e.scoring.GroupAbsentPenalty
				}

				if confidence > 1.0 {
					confidence = 1.0
				}
				if confidence < 0.0 {
					confidence = 0.0
				}

				if confidence > bestConfidence {
					bestConfidence = confidence
					best = m
				}
			}
		}

		if best == nil {
			continue
		}

		value := text[best[0]:best[1]]
		if last := lastParticipatingGroup(best); last >= group && best[2*group] >= 0 {
			value = text[best[2*group] : best[2*group+1]]
		}

		pageNum := pageForPosition(ranges, best[0])
		evidence := contextSnippet(text, best[0], best[1], e.scoring.ContextChars)

		// Clause-presence rules record detection, not the matched wording
		if rule.BooleanPresence {
			value = "Yes"
		}
		value = strings.TrimSpace(value)

		extracted = append(extracted, Term{
			Key:              rule.Key,
			Label:            rule.Label,
			Value:            value,
			Source:           source,
			Page:             pageNum,
			EvidenceText:     evidence,
			EvidenceLocation: fmt.Sprintf("Page %d", pageNum),
			Confidence:       bestConfidence,
			RawMatch:         text[best[0]:best[1]],
			RawValue:         value,
		})
		found[rule.Key] = true
	}

	e.logger.Debug("term extraction complete", "source", string(source), "terms", len(extracted))
	return extracted
}

// lastParticipatingGroup returns the highest capture group index that
// took part in the match, or 0 when none did.
func lastParticipatingGroup(m []int) int {
	for g := len(m)/2 - 1; g >= 1; g-- {
		if m[2*g] >= 0 {
			return g
		}
	}
	return 0
}

// pageForPosition finds the page owning a byte offset of the combined text.
func pageForPosition(ranges []pageRange, pos int) int {
	for _, r := range ranges {
		if r.start <= pos && pos < r.end {
			return r.page
		}
	}
	return 1
}

// contextSnippet extracts the evidence snippet around a match, collapsing
// runs of whitespace and marking truncation with ellipses.
func contextSnippet(text string, matchStart, matchEnd, contextChars int) string {
	start := matchStart - contextChars
	if start < 0 {
		start = 0
	}
	end := matchEnd + contextChars
	if end > len(text) {
		end = len(text)
	}

	snippet := strings.Join(strings.Fields(text[start:end]), " ")

	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}
