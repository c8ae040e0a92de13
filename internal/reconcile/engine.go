// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"docconform/internal/logging"
	"docconform/internal/normalize"
	"docconform/internal/terms"
)

const defaultNumericTolerance = 0.001

var numberPattern = regexp.MustCompile(`[\d.]+`)

// Validator compares term sets and reports issues with evidence.
type Validator struct {
	norm      *normalize.Normalizer
	tolerance float64
	logger    *slog.Logger
}

// ValidatorOptions configures a Validator. Zero values select defaults.
type ValidatorOptions struct {
	// NumericTolerance is the relative tolerance for numeric
	// comparisons. Defaults to 0.001 (0.1%).
	NumericTolerance float64
	Logger           *slog.Logger
}

func NewValidator(opts ValidatorOptions) *Validator {
	if opts.NumericTolerance == 0 {
		opts.NumericTolerance = defaultNumericTolerance
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Validator{
		norm:      normalize.New(opts.Logger),
		tolerance: opts.NumericTolerance,
		logger:    opts.Logger,
	}
}

// Validate runs the full reconciliation: cross-document comparison plus
// internal consistency checks on each document.
func (v *Validator) Validate(approved, executed []terms.Term) []Issue {
	issues := v.CompareTerms(approved, executed)
	issues = append(issues, v.CheckInternalConsistency(approved, terms.SourceApproved)...)
	issues = append(issues, v.CheckInternalConsistency(executed, terms.SourceExecuted)...)
	v.logger.Debug("validation complete", "issues", len(issues))
	return issues
}

// CompareTerms checks tracked terms for deviations, confirms required
// clauses and flags approved terms missing from the executed agreement.
func (v *Validator) CompareTerms(approved, executed []terms.Term) []Issue {
	var issues []Issue

	approvedLookup, approvedOrder := buildLookup(approved)
	executedLookup, _ := buildLookup(executed)

	for _, rule := range orderedRules {
		approvedTerm, inApproved := approvedLookup[rule.Key]
		executedTerm, inExecuted := executedLookup[rule.Key]
		if !inApproved || !inExecuted {
			continue
		}
		if v.valuesMatch(approvedTerm.Value, executedTerm.Value, rule.Comparison) {
			continue
		}

		severity := SeverityWarn
		if rule.HighSeverity {
			severity = SeverityHigh
		}
		issues = append(issues, Issue{
			Code:             CodeMismatch,
			Severity:         severity,
			Message:          fmt.Sprintf("%s differs between Approved Credit Summary and Executed Agreement", approvedTerm.Label),
			RelatedTermKey:   rule.Key,
			RelatedTermLabel: approvedTerm.Label,
			Evidence:         fmt.Sprintf("Approved: %s vs Executed: %s", approvedTerm.Value, executedTerm.Value),
			ApprovedEvidence: approvedTerm.EvidenceText,
			ExecutedEvidence: executedTerm.EvidenceText,
			RegulationImpact: rule.RegulationImpact,
		})
	}

	for _, clause := range requiredClauses {
		requiredKey := strings.ReplaceAll(clause.Key, "_present", "_required")
		_, isRequired := approvedLookup[requiredKey]
		if !isRequired {
			_, isRequired = approvedLookup[clause.Key]
		}

		executedTerm, isPresent := executedLookup[clause.Key]
		if isPresent {
			switch strings.ToLower(executedTerm.Value) {
			case "yes", "true", "present", "1":
			default:
				isPresent = false
			}
		}

		switch {
		case isPresent:
			issues = append(issues, Issue{
				Code:             CodeClausePresent,
				Severity:         SeverityInfo,
				Message:          clause.Label + " is present in executed agreement",
				RelatedTermKey:   clause.Key,
				RelatedTermLabel: clause.Label,
				Evidence:         clause.Label + " found in executed document",
				ApprovedEvidence: "Required per credit policy",
				ExecutedEvidence: executedTerm.EvidenceText,
				RegulationImpact: strings.ReplaceAll(clause.RegulationImpact, "Missing clause", "Clause present -"),
			})
		case isRequired:
			issues = append(issues, Issue{
				Code:             CodeMissingClause,
				Severity:         SeverityWarn,
				Message:          clause.Label + " is required but not found in executed agreement",
				RelatedTermKey:   clause.Key,
				RelatedTermLabel: clause.Label,
				Evidence:         clause.Label + " not detected in executed document",
				ApprovedEvidence: "Required per credit policy",
				ExecutedEvidence: "Not found",
				RegulationImpact: clause.RegulationImpact,
			})
		}
	}

	for _, key := range approvedOrder {
		if _, inExecuted := executedLookup[key]; inExecuted {
			continue
		}
		if _, tracked := ruleByKey[key]; !tracked {
			continue
		}
		approvedTerm := approvedLookup[key]
		issues = append(issues, Issue{
			Code:             CodeCompleteness,
			Severity:         SeverityWarn,
			Message:          fmt.Sprintf("%s was approved but not found in executed agreement", approvedTerm.Label),
			RelatedTermKey:   key,
			RelatedTermLabel: approvedTerm.Label,
			Evidence:         "Approved: Found vs Executed: Not found",
			ApprovedEvidence: approvedTerm.EvidenceText,
			ExecutedEvidence: "Term not detected in executed document",
			RegulationImpact: "Missing term may indicate incomplete agreement or extraction failure. Manual review recommended.",
		})
	}

	return issues
}

// CheckInternalConsistency flags term keys that were extracted more than
// once from one document with conflicting values.
func (v *Validator) CheckInternalConsistency(ts []terms.Term, source terms.Source) []Issue {
	var issues []Issue

	groups := make(map[string][]*terms.Term)
	var order []string
	for i := range ts {
		key := ts[i].Key
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], &ts[i])
	}

	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		distinct := make(map[string]struct{}, len(group))
		for _, term := range group {
			distinct[normalizeForComparison(term.Value)] = struct{}{}
		}
		if len(distinct) < 2 {
			continue
		}

		values := make([]string, len(group))
		for i, term := range group {
			values[i] = term.Value
		}
		joined := strings.Join(values, ", ")

		approvedEvidence := "Values: " + joined
		executedEvidence := ""
		if source == terms.SourceExecuted {
			approvedEvidence, executedEvidence = "", "Values: "+joined
		}

		issues = append(issues, Issue{
			Code:             CodeMultipleValues,
			Severity:         SeverityWarn,
			Message:          fmt.Sprintf("Multiple different values found for %s in %s document", group[0].Label, source),
			RelatedTermKey:   key,
			RelatedTermLabel: group[0].Label,
			Evidence:         "Values found: " + joined,
			ApprovedEvidence: approvedEvidence,
			ExecutedEvidence: executedEvidence,
			RegulationImpact: "Internal inconsistency may indicate drafting errors. Verify which value is authoritative.",
		})
	}

	return issues
}

func (v *Validator) valuesMatch(approvedVal, executedVal string, comparison ComparisonType) bool {
	switch comparison {
	case CompareExact:
		return normalizeForComparison(approvedVal) == normalizeForComparison(executedVal)

	case CompareNumeric:
		approvedNums := numberPattern.FindAllString(approvedVal, -1)
		executedNums := numberPattern.FindAllString(executedVal, -1)
		if len(approvedNums) == 0 || len(executedNums) == 0 {
			return normalizeForComparison(approvedVal) == normalizeForComparison(executedVal)
		}
		approvedNum, errApproved := strconv.ParseFloat(approvedNums[0], 64)
		executedNum, errExecuted := strconv.ParseFloat(executedNums[0], 64)
		if errApproved != nil || errExecuted != nil {
			return false
		}
		return math.Abs(approvedNum-executedNum)/math.Max(approvedNum, 1) < v.tolerance

	case CompareDate:
		return v.norm.Date(approvedVal) == v.norm.Date(executedVal)

	case CompareFuzzy:
		approvedClean := normalizeForComparison(approvedVal)
		executedClean := normalizeForComparison(executedVal)
		return strings.Contains(executedClean, approvedClean) || strings.Contains(approvedClean, executedClean)

	case CompareContains:
		return strings.Contains(normalizeForComparison(executedVal), normalizeForComparison(approvedVal))
	}
	return false
}

// normalizeForComparison strips casing, separators and currency noise so
// notation differences do not register as deviations.
func normalizeForComparison(value string) string {
	if value == "" {
		return ""
	}
	normalized := strings.TrimSpace(strings.ToLower(value))
	normalized = strings.ReplaceAll(normalized, ",", "")
	normalized = strings.ReplaceAll(normalized, "$", "")
	normalized = strings.ReplaceAll(normalized, "usd", "")
	normalized = strings.ReplaceAll(normalized, "  ", " ")
	return normalized
}
