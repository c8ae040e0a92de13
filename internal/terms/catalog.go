// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package terms

import "regexp"

// Rule defines how one term is recognized. Patterns are tried in order;
// ExtractGroup names the capture group holding the value (group 0, the
// whole match, is used when a pattern has no participating group).
type Rule struct {
	Key             string
	Label           string
	Patterns        []*regexp.Regexp
	ExtractGroup    int
	ConfidenceBase  float64
	BooleanPresence bool // value is forced to "Yes" when any pattern matches
}

// defaultCatalog covers the key terms of a syndicated credit agreement.
// Order matters: earlier rules win when a custom catalog reuses a key.
var defaultCatalog = []Rule{
	{
		Key:   "borrower",
		Label: "Borrower",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:borrower|obligor)[:\s]+([A-Z][A-Za-z\s,\.]+(?:Inc\.|Corp\.|LLC|Company|Corporation|Limited))`),
			regexp.MustCompile(`(?i)([A-Z][A-Z\s]+(?:COMPANY|CORPORATION|INC\.|CORP\.)),?\s*(?:a\s+\w+\s+corporation)`),
			regexp.MustCompile(`(?i)"Borrower"\s+means?\s+([A-Za-z\s,\.]+(?:Inc\.|Corp\.|LLC|Company|Corporation))`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.90,
	},
	{
		Key:   "facility_amount",
		Label: "Facility Amount",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:aggregate\s+)?(?:commitment|facility)(?:\s+amount)?[:\s]*(?:USD|US\$|\$)\s*([\d,]+(?:\.\d+)?)`),
			regexp.MustCompile(`(?i)(?:USD|US\$|\$)\s*([\d,]+(?:\.\d+)?)\s*(?:million|,000,000)`),
			regexp.MustCompile(`(?i)(?:principal|total)\s+(?:amount|sum)[:\s]*(?:USD|US\$|\$)\s*([\d,]+(?:\.\d+)?)`),
			regexp.MustCompile(`(?i)"Aggregate Commitments"[^$]*\$([\d,]+(?:\.\d+)?)`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.85,
	},
	{
		Key:   "currency",
		Label: "Currency",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:currency|denomination)[:\s]*(USD|EUR|GBP|CHF|JPY|United States Dollars?)`),
			regexp.MustCompile(`(?i)(Dollars?|USD|US\$)\s+(?:or\s+\$\s+)?refers?\s+to\s+(?:lawful\s+)?money`),
			regexp.MustCompile(`(?i)(?:in|denominated\s+in)\s+(USD|EUR|GBP|United States Dollars)`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.95,
	},
	{
		Key:   "maturity_date",
		Label: "Maturity Date",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:maturity|termination|expiry)\s*date[:\s]*((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})`),
			regexp.MustCompile(`(?i)"Maturity Date"\s+means?\s+((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})`),
			regexp.MustCompile(`(?i)(?:maturity|termination)\s*date[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
			regexp.MustCompile(`(?i)(?:maturity|termination)\s*date[:\s]*(\d{4}-\d{2}-\d{2})`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.90,
	},
	{
		Key:   "benchmark",
		Label: "Interest Rate Benchmark",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:benchmark|reference)\s*(?:rate)?[:\s]*(SOFR|LIBOR|EURIBOR|SONIA|Term SOFR|Adjusted Term SOFR)`),
			regexp.MustCompile(`(?i)"Term SOFR"\s+means`),
			regexp.MustCompile(`(?i)(SOFR|LIBOR|EURIBOR)\s*[+\-]`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.92,
	},
	{
		Key:   "margin_bps",
		Label: "Applicable Margin",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:applicable\s+)?(?:margin|spread)[:\s]*(\d+(?:\.\d+)?)\s*(?:basis\s+points|bps|bp)`),
			regexp.MustCompile(`(?i)(?:applicable\s+)?(?:margin|spread)[:\s]*(\d+(?:\.\d+)?)\s*%`),
			regexp.MustCompile(`(?i)(?:SOFR|LIBOR|benchmark)\s*[+]\s*(\d+(?:\.\d+)?)\s*%`),
			regexp.MustCompile(`(?i)Applicable Rate[^%]*(\d+(?:\.\d+)?)\s*%`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.85,
	},
	{
		Key:   "covenant_total_net_leverage",
		Label: "Total Net Leverage Covenant",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:total\s+)?(?:net\s+)?leverage\s*(?:ratio)?[:\s]*(?:not\s+(?:to\s+)?exceed\s+)?(\d+(?:\.\d+)?)\s*(?:to\s*1(?:\.00)?|[x×])`),
			regexp.MustCompile(`(?i)(?:maximum\s+)?(?:total\s+)?leverage\s*ratio[:\s]*(\d+(?:\.\d+)?)\s*(?:to\s*1|[x×])`),
			regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*to\s*1(?:\.00)?\s*(?:leverage|debt)`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.88,
	},
	{
		Key:   "covenant_interest_coverage",
		Label: "Interest Coverage Covenant",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)interest\s+coverage\s*(?:ratio)?[:\s]*(?:not\s+(?:less\s+than|below)\s+)?(\d+(?:\.\d+)?)\s*(?:to\s*1|[x×])`),
			regexp.MustCompile(`(?i)(?:minimum\s+)?interest\s+coverage[:\s]*(\d+(?:\.\d+)?)`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.88,
	},
	{
		Key:   "covenant_frequency",
		Label: "Covenant Testing Frequency",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:testing|compliance)\s*(?:frequency|period)[:\s]*(quarterly|semi-annually|annually|monthly)`),
			regexp.MustCompile(`(?i)(?:tested|measured)\s+(quarterly|semi-annually|annually|monthly)`),
			regexp.MustCompile(`(?i)(quarterly|semi-annual|annual)\s+(?:testing|compliance|reporting)`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.85,
	},
	{
		Key:   "sanctions_clause_present",
		Label: "Sanctions Clause Present",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)"Sanctions"\s+means?\s+(?:any\s+)?(?:economic\s+or\s+financial\s+)?sanctions`),
			regexp.MustCompile(`(?i)OFAC[,\s]+(?:the\s+)?U\.?S\.?\s+Department\s+of\s+(?:the\s+)?Treasury`),
			regexp.MustCompile(`(?i)sanctions\s+(?:administered|enforced)\s+(?:by|under)`),
		},
		ExtractGroup:    1,
		ConfidenceBase:  0.92,
		BooleanPresence: true,
	},
	{
		Key:   "bail_in_clause_present",
		Label: "Bail-In Clause Present",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:acknowledgement|acknowledgment)\s+(?:and\s+)?(?:consent\s+)?(?:to\s+)?bail[-\s]?in`),
			regexp.MustCompile(`(?i)(?:EU|EEA)\s+bail[-\s]?in\s+(?:legislation|clause|recognition)`),
			regexp.MustCompile(`(?i)BRRD|Bank\s+Recovery\s+and\s+Resolution\s+Directive`),
			regexp.MustCompile(`(?i)Affected\s+Financial\s+Institutions?.*bail[-\s]?in`),
		},
		ExtractGroup:    1,
		ConfidenceBase:  0.92,
		BooleanPresence: true,
	},
	{
		Key:   "facility_type",
		Label: "Facility Type",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)((?:364[-\s]?day|revolving|term|bridge|swingline)\s+(?:credit\s+)?(?:facility|loan|agreement))`),
			regexp.MustCompile(`(?i)(?:type\s+of\s+)?facility[:\s]*(revolving|term\s+loan|bridge|swingline)`),
		},
		ExtractGroup:   1,
		ConfidenceBase: 0.88,
	},
}

// DefaultCatalog returns the built-in extraction rules. The returned slice
// is shared; callers must not modify it.
func DefaultCatalog() []Rule {
	return defaultCatalog
}
