// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docconform/internal/terms"
)

func mkTerm(key, label, value string, source terms.Source) terms.Term {
	return terms.Term{
		Key:              key,
		Label:            label,
		Value:            value,
		Source:           source,
		Page:             1,
		EvidenceText:     label + ": " + value,
		EvidenceLocation: "Page 1",
		Confidence:       0.9,
	}
}

func TestValidate_FacilityAmountMismatch(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	approved := []terms.Term{mkTerm("facility_amount", "Facility Amount", "USD 300,000,000", terms.SourceApproved)}
	executed := []terms.Term{mkTerm("facility_amount", "Facility Amount", "USD 6,000,000,000", terms.SourceExecuted)}

	issues := v.Validate(approved, executed)

	require.Len(t, issues, 1)
	issue := issues[0]
	assert.Equal(t, CodeMismatch, issue.Code)
	assert.Equal(t, SeverityHigh, issue.Severity)
	assert.Equal(t, "Facility Amount differs between Approved Credit Summary and Executed Agreement", issue.Message)
	assert.Equal(t, "facility_amount", issue.RelatedTermKey)
	assert.Equal(t, "Facility Amount", issue.RelatedTermLabel)
	assert.Equal(t, "Approved: USD 300,000,000 vs Executed: USD 6,000,000,000", issue.Evidence)
	assert.Equal(t, "Facility Amount: USD 300,000,000", issue.ApprovedEvidence)
	assert.Equal(t, "Facility Amount: USD 6,000,000,000", issue.ExecutedEvidence)
	assert.Contains(t, issue.RegulationImpact, "credit committee escalation")
}

func TestCompareTerms_NotationDifferencesAreNotDeviations(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	approved := []terms.Term{
		mkTerm("facility_amount", "Facility Amount", "$300,000,000", terms.SourceApproved),
		mkTerm("benchmark", "Interest Rate Benchmark", "Term SOFR", terms.SourceApproved),
	}
	executed := []terms.Term{
		mkTerm("facility_amount", "Facility Amount", "300000000", terms.SourceExecuted),
		mkTerm("benchmark", "Interest Rate Benchmark", "term sofr", terms.SourceExecuted),
	}

	assert.Empty(t, v.CompareTerms(approved, executed))
}

func TestCompareTerms_MismatchSeverityFollowsRule(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	approved := []terms.Term{mkTerm("margin_bps", "Applicable Margin", "225", terms.SourceApproved)}
	executed := []terms.Term{mkTerm("margin_bps", "Applicable Margin", "250", terms.SourceExecuted)}

	issues := v.CompareTerms(approved, executed)

	require.Len(t, issues, 1)
	assert.Equal(t, CodeMismatch, issues[0].Code)
	assert.Equal(t, SeverityWarn, issues[0].Severity)
	assert.Equal(t, "Pricing deviation may affect profitability calculations. Review against approved ROE thresholds.", issues[0].RegulationImpact)
}

func TestCompareTerms_SkipsRulesMissingOnEitherSide(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	approved := []terms.Term{mkTerm("currency", "Currency", "USD", terms.SourceApproved)}

	issues := v.CompareTerms(approved, nil)

	// currency never reaches the mismatch pass without both sides, but
	// it is tracked, so its absence surfaces as a completeness finding.
	require.Len(t, issues, 1)
	assert.Equal(t, CodeCompleteness, issues[0].Code)
}

func TestCompareTerms_ClausePresent(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	executed := []terms.Term{mkTerm("bail_in_clause_present", "Bail-In Clause Present", "Yes", terms.SourceExecuted)}

	issues := v.CompareTerms(nil, executed)

	require.Len(t, issues, 1)
	issue := issues[0]
	assert.Equal(t, CodeClausePresent, issue.Code)
	assert.Equal(t, SeverityInfo, issue.Severity)
	assert.Equal(t, "Bail-In Clause is present in executed agreement", issue.Message)
	assert.Equal(t, "bail_in_clause_present", issue.RelatedTermKey)
	assert.Equal(t, "Bail-In Clause", issue.RelatedTermLabel)
	assert.Equal(t, "Bail-In Clause found in executed document", issue.Evidence)
	assert.Equal(t, "Required per credit policy", issue.ApprovedEvidence)
	assert.Equal(t, "Bail-In Clause Present: Yes", issue.ExecutedEvidence)
	assert.Equal(t, "Bail-In recognition clause required per Article 55 BRRD for contracts with EU/EEA counterparties.", issue.RegulationImpact)
}

func TestCompareTerms_ClausePresentRewritesImpactNarrative(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	executed := []terms.Term{mkTerm("sanctions_clause_present", "Sanctions Clause Present", "Yes", terms.SourceExecuted)}

	issues := v.CompareTerms(nil, executed)

	require.Len(t, issues, 1)
	assert.Equal(t, CodeClausePresent, issues[0].Code)
	assert.Equal(t, "Sanctions clause required per OFAC compliance policy. Clause present - may block drawdown.", issues[0].RegulationImpact)
}

func TestCompareTerms_MissingRequiredClause(t *testing.T) {
	v := NewValidator(ValidatorOptions{})

	t.Run("required flagged via _required sibling", func(t *testing.T) {
		approved := []terms.Term{mkTerm("sanctions_clause_required", "Sanctions Clause Required", "Yes", terms.SourceApproved)}

		issues := v.CompareTerms(approved, nil)

		require.Len(t, issues, 1)
		issue := issues[0]
		assert.Equal(t, CodeMissingClause, issue.Code)
		assert.Equal(t, SeverityWarn, issue.Severity)
		assert.Equal(t, "Sanctions Clause is required but not found in executed agreement", issue.Message)
		assert.Equal(t, "Sanctions Clause not detected in executed document", issue.Evidence)
		assert.Equal(t, "Required per credit policy", issue.ApprovedEvidence)
		assert.Equal(t, "Not found", issue.ExecutedEvidence)
		assert.Equal(t, "Sanctions clause required per OFAC compliance policy. Missing clause may block drawdown.", issue.RegulationImpact)
	})

	t.Run("required flagged via presence key on approved side", func(t *testing.T) {
		approved := []terms.Term{mkTerm("bail_in_clause_present", "Bail-In Clause Present", "Yes", terms.SourceApproved)}

		issues := v.CompareTerms(approved, nil)

		require.Len(t, issues, 1)
		assert.Equal(t, CodeMissingClause, issues[0].Code)
		assert.Equal(t, "bail_in_clause_present", issues[0].RelatedTermKey)
	})
}

func TestCompareTerms_ClauseValueMustBeAffirmative(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	approved := []terms.Term{mkTerm("bail_in_clause_required", "Bail-In Clause Required", "Yes", terms.SourceApproved)}
	executed := []terms.Term{mkTerm("bail_in_clause_present", "Bail-In Clause Present", "No", terms.SourceExecuted)}

	issues := v.CompareTerms(approved, executed)

	require.Len(t, issues, 1)
	assert.Equal(t, CodeMissingClause, issues[0].Code)
}

func TestCompareTerms_ClauseNeitherRequiredNorPresent(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	approved := []terms.Term{mkTerm("currency", "Currency", "USD", terms.SourceApproved)}
	executed := []terms.Term{mkTerm("currency", "Currency", "USD", terms.SourceExecuted)}

	assert.Empty(t, v.CompareTerms(approved, executed))
}

func TestCompareTerms_CompletenessOnlyForTrackedKeys(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	approved := []terms.Term{
		mkTerm("covenant_frequency", "Covenant Testing Frequency", "Quarterly", terms.SourceApproved),
		mkTerm("facility_type", "Facility Type", "Revolving Credit Facility", terms.SourceApproved),
	}

	issues := v.CompareTerms(approved, nil)

	require.Len(t, issues, 1)
	issue := issues[0]
	assert.Equal(t, CodeCompleteness, issue.Code)
	assert.Equal(t, SeverityWarn, issue.Severity)
	assert.Equal(t, "covenant_frequency", issue.RelatedTermKey)
	assert.Equal(t, "Covenant Testing Frequency was approved but not found in executed agreement", issue.Message)
	assert.Equal(t, "Approved: Found vs Executed: Not found", issue.Evidence)
	assert.Equal(t, "Covenant Testing Frequency: Quarterly", issue.ApprovedEvidence)
	assert.Equal(t, "Term not detected in executed document", issue.ExecutedEvidence)
	assert.Equal(t, "Missing term may indicate incomplete agreement or extraction failure. Manual review recommended.", issue.RegulationImpact)
}

func TestCheckInternalConsistency_MultipleValues(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	docTerms := []terms.Term{
		mkTerm("borrower", "Borrower", "Meridian Industrial Holdings Inc.", terms.SourceApproved),
		mkTerm("borrower", "Borrower", "Meridian Industrial Group Inc.", terms.SourceApproved),
	}

	issues := v.CheckInternalConsistency(docTerms, terms.SourceApproved)

	require.Len(t, issues, 1)
	issue := issues[0]
	assert.Equal(t, CodeMultipleValues, issue.Code)
	assert.Equal(t, SeverityWarn, issue.Severity)
	assert.Equal(t, "Multiple different values found for Borrower in APPROVED document", issue.Message)
	assert.Equal(t, "borrower", issue.RelatedTermKey)
	assert.Equal(t, "Values found: Meridian Industrial Holdings Inc., Meridian Industrial Group Inc.", issue.Evidence)
	assert.Equal(t, "Values: Meridian Industrial Holdings Inc., Meridian Industrial Group Inc.", issue.ApprovedEvidence)
	assert.Empty(t, issue.ExecutedEvidence)
	assert.Equal(t, "Internal inconsistency may indicate drafting errors. Verify which value is authoritative.", issue.RegulationImpact)
}

func TestCheckInternalConsistency_ExecutedSideAttribution(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	docTerms := []terms.Term{
		mkTerm("margin_bps", "Applicable Margin", "225", terms.SourceExecuted),
		mkTerm("margin_bps", "Applicable Margin", "250", terms.SourceExecuted),
	}

	issues := v.CheckInternalConsistency(docTerms, terms.SourceExecuted)

	require.Len(t, issues, 1)
	assert.Equal(t, "Multiple different values found for Applicable Margin in EXECUTED document", issues[0].Message)
	assert.Empty(t, issues[0].ApprovedEvidence)
	assert.Equal(t, "Values: 225, 250", issues[0].ExecutedEvidence)
}

func TestCheckInternalConsistency_EquivalentValuesAreNotConflicts(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	docTerms := []terms.Term{
		mkTerm("facility_amount", "Facility Amount", "3,500,000", terms.SourceApproved),
		mkTerm("facility_amount", "Facility Amount", "3500000", terms.SourceApproved),
		mkTerm("borrower", "Borrower", "ACME Corp", terms.SourceApproved),
		mkTerm("borrower", "Borrower", "acme corp", terms.SourceApproved),
		mkTerm("currency", "Currency", "USD", terms.SourceApproved),
	}

	assert.Empty(t, v.CheckInternalConsistency(docTerms, terms.SourceApproved))
}

func TestValidate_PassOrderAndAggregation(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	approved := []terms.Term{
		mkTerm("facility_amount", "Facility Amount", "USD 300,000,000", terms.SourceApproved),
		mkTerm("covenant_frequency", "Covenant Testing Frequency", "Quarterly", terms.SourceApproved),
		mkTerm("borrower", "Borrower", "Meridian Industrial Holdings Inc.", terms.SourceApproved),
		mkTerm("borrower", "Borrower", "Meridian Industrial Group Inc.", terms.SourceApproved),
	}
	executed := []terms.Term{
		mkTerm("facility_amount", "Facility Amount", "USD 6,000,000,000", terms.SourceExecuted),
		mkTerm("borrower", "Borrower", "Meridian Industrial Group Inc., as Borrower", terms.SourceExecuted),
		mkTerm("bail_in_clause_present", "Bail-In Clause Present", "Yes", terms.SourceExecuted),
	}

	issues := v.Validate(approved, executed)

	require.Len(t, issues, 4)
	assert.Equal(t, CodeMismatch, issues[0].Code)
	assert.Equal(t, "facility_amount", issues[0].RelatedTermKey)
	assert.Equal(t, CodeClausePresent, issues[1].Code)
	assert.Equal(t, "bail_in_clause_present", issues[1].RelatedTermKey)
	assert.Equal(t, CodeCompleteness, issues[2].Code)
	assert.Equal(t, "covenant_frequency", issues[2].RelatedTermKey)
	assert.Equal(t, CodeMultipleValues, issues[3].Code)
	assert.Equal(t, "borrower", issues[3].RelatedTermKey)

	counts := CountBySeverity(issues)
	assert.Equal(t, 1, counts[SeverityHigh])
	assert.Equal(t, 2, counts[SeverityWarn])
	assert.Equal(t, 1, counts[SeverityInfo])
	assert.True(t, HasSeverity(issues, SeverityHigh))
}

func TestValuesMatch(t *testing.T) {
	v := NewValidator(ValidatorOptions{})
	tests := []struct {
		name       string
		approved   string
		executed   string
		comparison ComparisonType
		want       bool
	}{
		{"exact ignores case and separators", "$300,000,000", "300000000", CompareExact, true},
		{"exact catches real differences", "USD 300,000,000", "USD 6,000,000,000", CompareExact, false},
		{"numeric within tolerance", "100", "100.05", CompareNumeric, true},
		{"numeric outside tolerance", "100", "100.2", CompareNumeric, false},
		{"numeric reads first token", "SOFR + 225 bps", "225 basis points", CompareNumeric, true},
		{"numeric denominator floors at one", "0.001", "0.0015", CompareNumeric, true},
		{"numeric without digits falls back to exact", "TBD", "tbd", CompareNumeric, true},
		{"numeric one side without digits", "TBD", "225", CompareNumeric, false},
		{"numeric unparseable token never matches", "1.2.3", "1.2.3", CompareNumeric, false},
		{"date across notations", "June 30, 2028", "2028-06-30", CompareDate, true},
		{"date real difference", "June 30, 2028", "September 30, 2028", CompareDate, false},
		{"fuzzy approved contained in executed", "Meridian Industrial Holdings Inc.", "Meridian Industrial Holdings Inc., a Delaware corporation", CompareFuzzy, true},
		{"fuzzy executed contained in approved", "Meridian Industrial Holdings Inc., a Delaware corporation", "Meridian Industrial Holdings Inc.", CompareFuzzy, true},
		{"fuzzy distinct names", "Meridian Industrial Holdings Inc.", "Atlas Maritime Partners LLC", CompareFuzzy, false},
		{"contains approved in executed", "quarterly", "tested quarterly each fiscal quarter", CompareContains, true},
		{"contains is one-directional", "tested quarterly each fiscal quarter", "quarterly", CompareContains, false},
		{"unknown comparison never matches", "same", "same", ComparisonType("unknown"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.valuesMatch(tt.approved, tt.executed, tt.comparison))
		})
	}
}

func TestNewValidator_ToleranceOption(t *testing.T) {
	def := NewValidator(ValidatorOptions{})
	assert.InDelta(t, 0.001, def.tolerance, 1e-12)
	assert.False(t, def.valuesMatch("100", "104", CompareNumeric))

	loose := NewValidator(ValidatorOptions{NumericTolerance: 0.05})
	assert.True(t, loose.valuesMatch("100", "104", CompareNumeric))
}

func TestNormalizeForComparison(t *testing.T) {
	assert.Equal(t, "", normalizeForComparison(""))
	assert.Equal(t, "300000000", normalizeForComparison("$300,000,000"))
	assert.Equal(t, " 300000000", normalizeForComparison("USD 300,000,000"))
	assert.Equal(t, "term sofr", normalizeForComparison("Term SOFR"))
	// double spaces collapse one pass, not recursively
	assert.Equal(t, "a  b", normalizeForComparison("a    b"))
}
