// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package terms

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singlePage(text string) []Page {
	return []Page{{Number: 1, Text: text}}
}

func findTerm(terms []Term, key string) *Term {
	for i := range terms {
		if terms[i].Key == key {
			return &terms[i]
		}
	}
	return nil
}

func TestExtract_FacilityAmount(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	terms := e.Extract(singlePage("The Facility Amount: USD 300,000,000 shall be available."), SourceApproved)

	term := findTerm(terms, "facility_amount")
	require.NotNil(t, term)
	assert.Equal(t, "300,000,000", term.Value)
	assert.Equal(t, "Facility Amount", term.Label)
	assert.Equal(t, SourceApproved, term.Source)
	assert.Equal(t, 1, term.Page)
	assert.Equal(t, "Page 1", term.EvidenceLocation)
	assert.InDelta(t, 0.85, term.Confidence, 1e-9)
	assert.Contains(t, term.EvidenceText, "USD 300,000,000")
	assert.Contains(t, term.RawMatch, "Facility Amount")
}

func TestExtract_Borrower(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	terms := e.Extract(singlePage("Borrower: Meridian Industrial Holdings Inc."), SourceExecuted)

	term := findTerm(terms, "borrower")
	require.NotNil(t, term)
	assert.Equal(t, "Meridian Industrial Holdings Inc.", term.Value)
	assert.InDelta(t, 0.90, term.Confidence, 1e-9)
}

func TestExtract_MaturityDate(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	terms := e.Extract(singlePage("Maturity Date: June 30, 2028"), SourceExecuted)

	term := findTerm(terms, "maturity_date")
	require.NotNil(t, term)
	assert.Equal(t, "June 30, 2028", term.Value)
}

func TestExtract_BenchmarkAlternationPrefersExactPhrase(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	terms := e.Extract(singlePage("Benchmark Rate: Term SOFR"), SourceExecuted)

	term := findTerm(terms, "benchmark")
	require.NotNil(t, term)
	assert.Equal(t, "Term SOFR", term.Value)
	assert.InDelta(t, 0.92, term.Confidence, 1e-9)
}

func TestExtract_CurrencyDenominatedIn(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	terms := e.Extract(singlePage("All advances shall be denominated in USD unless agreed otherwise."), SourceExecuted)

	term := findTerm(terms, "currency")
	require.NotNil(t, term)
	assert.Equal(t, "USD", term.Value)
	assert.InDelta(t, 0.95, term.Confidence, 1e-9)
}

func TestExtract_LongMatchBonus(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	// The whole match is longer than 50 characters, so the confidence
	// rises above the rule's base of 0.88.
	terms := e.Extract(singlePage("Total Net Leverage Ratio: not to exceed 3.50 to 1.00"), SourceExecuted)

	term := findTerm(terms, "covenant_total_net_leverage")
	require.NotNil(t, term)
	assert.Equal(t, "3.50", term.Value)
	assert.InDelta(t, 0.93, term.Confidence, 1e-9)
}

func TestExtract_BooleanPresenceForcesYes(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	text := `"Sanctions" means any economic or financial sanctions imposed from time to time.`
	terms := e.Extract(singlePage(text), SourceExecuted)

	term := findTerm(terms, "sanctions_clause_present")
	require.NotNil(t, term)
	assert.Equal(t, "Yes", term.Value)
	// base 0.92 plus the long-match bonus
	assert.InDelta(t, 0.97, term.Confidence, 1e-9)
	assert.Contains(t, term.RawMatch, "Sanctions")
}

func TestExtract_BailInWithoutCaptureGroup(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	terms := e.Extract(singlePage("Subject to BRRD as implemented in the relevant member state."), SourceExecuted)

	term := findTerm(terms, "bail_in_clause_present")
	require.NotNil(t, term)
	assert.Equal(t, "Yes", term.Value)
	assert.Equal(t, "BRRD", term.RawMatch)
	// groupless pattern, no penalty
	assert.InDelta(t, 0.92, term.Confidence, 1e-9)
}

func TestExtract_HigherConfidenceBeatsEarlierPosition(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	// The bps mention comes first, but the "Applicable Rate" sentence is a
	// longer match and earns the bonus, so it wins.
	text := "Margin: 225 bps. Applicable Rate for each day means a rate per annum equal to 3 % in total."
	terms := e.Extract(singlePage(text), SourceExecuted)

	term := findTerm(terms, "margin_bps")
	require.NotNil(t, term)
	assert.Equal(t, "3", term.Value)
	assert.InDelta(t, 0.90, term.Confidence, 1e-9)
}

func TestExtract_FirstMatchWinsTies(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	text := "Margin: 225 bps for Term A. Margin: 300 bps for Term B."
	terms := e.Extract(singlePage(text), SourceExecuted)

	term := findTerm(terms, "margin_bps")
	require.NotNil(t, term)
	assert.Equal(t, "225", term.Value)
}

func TestExtract_AtMostOneTermPerKey(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	text := "The Facility Amount: USD 300,000,000. Facility Amount: USD 250,000,000."
	terms := e.Extract(singlePage(text), SourceExecuted)

	count := 0
	for _, term := range terms {
		if term.Key == "facility_amount" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtract_PageAttribution(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	pages := []Page{
		{Number: 1, Text: "General terms and definitions."},
		{Number: 2, Text: "Maturity Date: June 30, 2028"},
	}
	terms := e.Extract(pages, SourceExecuted)

	term := findTerm(terms, "maturity_date")
	require.NotNil(t, term)
	assert.Equal(t, 2, term.Page)
	assert.Equal(t, "Page 2", term.EvidenceLocation)
}

func TestExtract_EvidenceSnippetEllipses(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	padding := strings.Repeat("lorem ipsum dolor sit amet ", 10)
	text := padding + "Maturity Date: June 30, 2028 " + padding
	terms := e.Extract(singlePage(text), SourceExecuted)

	term := findTerm(terms, "maturity_date")
	require.NotNil(t, term)
	assert.True(t, strings.HasPrefix(term.EvidenceText, "..."))
	assert.True(t, strings.HasSuffix(term.EvidenceText, "..."))
	assert.Contains(t, term.EvidenceText, "June 30, 2028")
	assert.NotContains(t, term.EvidenceText, "\n")
}

func TestExtract_EvidenceNoEllipsesAtBoundaries(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	terms := e.Extract(singlePage("Maturity Date: June 30, 2028"), SourceExecuted)

	term := findTerm(terms, "maturity_date")
	require.NotNil(t, term)
	// the window covers the whole document, so no markers are added
	assert.False(t, strings.HasPrefix(term.EvidenceText, "..."))
	assert.False(t, strings.HasSuffix(term.EvidenceText, "..."))
	assert.Contains(t, term.EvidenceText, "Maturity Date: June 30, 2028")
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	pages := []Page{
		{Number: 1, Text: "Borrower: Meridian Industrial Holdings Inc. Facility Amount: USD 300,000,000."},
		{Number: 2, Text: "Maturity Date: June 30, 2028. Benchmark Rate: Term SOFR. Margin: 225 bps."},
	}

	first := e.Extract(pages, SourceExecuted)
	second := e.Extract(pages, SourceExecuted)
	assert.True(t, reflect.DeepEqual(first, second))
}

func TestExtract_CatalogOrderPreserved(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	text := "Maturity Date: June 30, 2028. Borrower: Meridian Industrial Holdings Inc."
	terms := e.Extract(singlePage(text), SourceExecuted)

	require.GreaterOrEqual(t, len(terms), 2)
	// borrower precedes maturity_date in the catalog even though the
	// maturity mention comes first in the text
	var keys []string
	for _, term := range terms {
		keys = append(keys, term.Key)
	}
	assert.Less(t, indexOf(keys, "borrower"), indexOf(keys, "maturity_date"))
}

func indexOf(ss []string, want string) int {
	for i, s := range ss {
		if s == want {
			return i
		}
	}
	return -1
}

func TestExtract_NoEvidenceNoTerm(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	terms := e.Extract(singlePage("This page intentionally left blank."), SourceExecuted)
	assert.Nil(t, findTerm(terms, "facility_amount"))
	assert.Nil(t, findTerm(terms, "borrower"))
}

func TestExtract_GroupAbsentPenalty(t *testing.T) {
	rule := Rule{
		Key:   "guaranty_amount",
		Label: "Guaranty Amount",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)guaranty\s+of\s+(\d+)\s*(thousand)?`),
		},
		ExtractGroup:   2,
		ConfidenceBase: 0.85,
	}
	e := NewExtractor(ExtractorOptions{Rules: []Rule{rule}})

	terms := e.Extract(singlePage("secured by a guaranty of 500 dollars"), SourceExecuted)
	term := findTerm(terms, "guaranty_amount")
	require.NotNil(t, term)
	// group 2 did not participate: confidence drops and the whole match
	// is used as the value
	assert.InDelta(t, 0.75, term.Confidence, 1e-9)
	assert.Equal(t, "guaranty of 500", term.Value)
}

func TestVerifyTerm(t *testing.T) {
	e := NewExtractor(ExtractorOptions{})
	pages := singlePage("Maturity Date: June 30, 2028")

	term := e.VerifyTerm(pages, "maturity_date")
	require.NotNil(t, term)
	assert.Equal(t, SourceVerification, term.Source)
	assert.Equal(t, "June 30, 2028", term.Value)

	assert.Nil(t, e.VerifyTerm(pages, "borrower"))
}

func TestContextSnippet(t *testing.T) {
	text := "aaaa match bbbb"
	snippet := contextSnippet(text, 5, 10, 100)
	assert.Equal(t, "aaaa match bbbb", snippet)

	snippet = contextSnippet(text, 5, 10, 2)
	assert.Equal(t, "...a match b...", snippet)
}

func TestLastParticipatingGroup(t *testing.T) {
	re := regexp.MustCompile(`(a)?(b)`)
	m := re.FindStringSubmatchIndex("b")
	assert.Equal(t, 2, lastParticipatingGroup(m))

	m = re.FindStringSubmatchIndex("ab")
	assert.Equal(t, 2, lastParticipatingGroup(m))

	re2 := regexp.MustCompile(`(a)(b)?`)
	m = re2.FindStringSubmatchIndex("a")
	assert.Equal(t, 1, lastParticipatingGroup(m))
}

func TestFingerprint(t *testing.T) {
	a := NewExtractor(ExtractorOptions{})
	b := NewExtractor(ExtractorOptions{})
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	custom := NewExtractor(ExtractorOptions{Rules: []Rule{{
		Key:            "guarantor_name",
		Label:          "Guarantor Name",
		Patterns:       []*regexp.Regexp{regexp.MustCompile(`(?i)guarantor[:\s]+(\w+)`)},
		ExtractGroup:   1,
		ConfidenceBase: 0.85,
	}}})
	assert.NotEqual(t, a.Fingerprint(), custom.Fingerprint())

	rescored := NewExtractor(ExtractorOptions{Scoring: Scoring{LongMatchBonus: 0.2}})
	assert.NotEqual(t, a.Fingerprint(), rescored.Fingerprint())
}
