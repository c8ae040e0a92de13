// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package reconcile

// ComparisonType selects how two term values are compared.
type ComparisonType string

const (
	CompareExact    ComparisonType = "exact"
	CompareNumeric  ComparisonType = "numeric"
	CompareDate     ComparisonType = "date"
	CompareFuzzy    ComparisonType = "fuzzy"
	CompareContains ComparisonType = "contains"
)

// ValidationRule states how a tracked term is compared across documents
// and what a deviation means in regulatory terms.
type ValidationRule struct {
	Key              string
	HighSeverity     bool
	Comparison       ComparisonType
	RegulationImpact string
}

// orderedRules lists the tracked terms in reporting order.
var orderedRules = []ValidationRule{
	{
		Key:              "facility_amount",
		HighSeverity:     true,
		Comparison:       CompareExact,
		RegulationImpact: "Material economic divergence exceeds approved credit limit. Requires immediate credit committee escalation and re-approval before drawdown.",
	},
	{
		Key:              "maturity_date",
		HighSeverity:     true,
		Comparison:       CompareDate,
		RegulationImpact: "Tenor mismatch affects facility classification and liquidity reporting. Verify whether deviation was authorized.",
	},
	{
		Key:              "margin_bps",
		HighSeverity:     false,
		Comparison:       CompareNumeric,
		RegulationImpact: "Pricing deviation may affect profitability calculations. Review against approved ROE thresholds.",
	},
	{
		Key:              "benchmark",
		HighSeverity:     true,
		Comparison:       CompareExact,
		RegulationImpact: "Benchmark rate change affects interest rate risk hedging requirements and regulatory reporting.",
	},
	{
		Key:              "covenant_total_net_leverage",
		HighSeverity:     false,
		Comparison:       CompareNumeric,
		RegulationImpact: "Covenant threshold deviation may affect credit risk assessment and provisioning.",
	},
	{
		Key:              "covenant_interest_coverage",
		HighSeverity:     false,
		Comparison:       CompareNumeric,
		RegulationImpact: "Interest coverage covenant change may affect debt serviceability analysis.",
	},
	{
		Key:              "covenant_frequency",
		HighSeverity:     false,
		Comparison:       CompareExact,
		RegulationImpact: "Covenant testing frequency change may affect monitoring cadence and breach detection timing.",
	},
	{
		Key:              "currency",
		HighSeverity:     true,
		Comparison:       CompareExact,
		RegulationImpact: "Currency mismatch affects FX risk calculations and regulatory capital requirements.",
	},
	{
		Key:              "borrower",
		HighSeverity:     true,
		Comparison:       CompareFuzzy,
		RegulationImpact: "Obligor identity mismatch is a critical error. Verify counterparty due diligence.",
	},
}

var ruleByKey = make(map[string]ValidationRule, len(orderedRules))

func init() {
	for _, rule := range orderedRules {
		ruleByKey[rule.Key] = rule
	}
}

// RequiredClause names a clause the executed agreement must contain.
type RequiredClause struct {
	Key              string
	Label            string
	RegulationImpact string
}

var requiredClauses = []RequiredClause{
	{
		Key:              "sanctions_clause_present",
		Label:            "Sanctions Clause",
		RegulationImpact: "Sanctions clause required per OFAC compliance policy. Missing clause may block drawdown.",
	},
	{
		Key:              "bail_in_clause_present",
		Label:            "Bail-In Clause",
		RegulationImpact: "Bail-In recognition clause required per Article 55 BRRD for contracts with EU/EEA counterparties.",
	},
}

// Clauses returns the clauses every executed agreement must contain.
func Clauses() []RequiredClause {
	return requiredClauses
}

// TrackedRule returns the validation rule for a term key, if one exists.
func TrackedRule(key string) (ValidationRule, bool) {
	rule, ok := ruleByKey[key]
	return rule, ok
}

// TrackedKeys returns the tracked term keys in reporting order.
func TrackedKeys() []string {
	keys := make([]string, len(orderedRules))
	for i, rule := range orderedRules {
		keys[i] = rule.Key
	}
	return keys
}
