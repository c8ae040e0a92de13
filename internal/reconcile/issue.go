// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package reconcile compares the terms extracted from an approved credit
// summary against those of an executed agreement and emits typed issues.
// Every issue carries evidence from both documents so findings stay
// traceable to document text.
package reconcile

import (
	"time"

	"docconform/internal/terms"
)

// Severity grades how material a finding is.
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
	SeverityHigh Severity = "HIGH"
)

// Rank orders severities for sorting and gating. Higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityWarn:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Code identifies the kind of finding.
type Code string

const (
	CodeMismatch        Code = "MISMATCH"
	CodeMultipleValues  Code = "MULTIPLE_VALUES"
	CodeMissingClause   Code = "MISSING_CLAUSE"
	CodeClausePresent   Code = "CLAUSE_PRESENT"
	CodeCompleteness    Code = "COMPLETENESS"
	CodeConsistencyFail Code = "CONSISTENCY_FAIL"
)

// Issue is a single finding from the reconciliation run.
type Issue struct {
	Code             Code     `json:"code"`
	Severity         Severity `json:"severity"`
	Message          string   `json:"message"`
	RelatedTermKey   string   `json:"related_term_key"`
	RelatedTermLabel string   `json:"related_term_label"`
	Evidence         string   `json:"evidence"`
	ApprovedEvidence string   `json:"approved_evidence"`
	ExecutedEvidence string   `json:"executed_evidence"`
	RegulationImpact string   `json:"regulation_impact"`
}

// WaivedIssue is an issue covered by an active waiver rule, kept for
// reporting instead of silently dropped.
type WaivedIssue struct {
	Issue      Issue      `json:"finding"`
	WaivedBy   string     `json:"waived_by"`
	RuleReason string     `json:"rule_reason"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Expired    bool       `json:"expired"`
}

// CountBySeverity tallies issues per severity level.
func CountBySeverity(issues []Issue) map[Severity]int {
	counts := make(map[Severity]int)
	for _, issue := range issues {
		counts[issue.Severity]++
	}
	return counts
}

// HasSeverity reports whether any issue is at or above the given level.
func HasSeverity(issues []Issue, level Severity) bool {
	for _, issue := range issues {
		if issue.Severity.Rank() >= level.Rank() {
			return true
		}
	}
	return false
}

// buildLookup indexes terms by key. When a key repeats, the last term
// wins, matching how repeated findings supersede earlier ones. The
// returned order preserves first appearance for deterministic output.
func buildLookup(ts []terms.Term) (map[string]*terms.Term, []string) {
	lookup := make(map[string]*terms.Term, len(ts))
	order := make([]string, 0, len(ts))
	for i := range ts {
		key := ts[i].Key
		if _, seen := lookup[key]; !seen {
			order = append(order, key)
		}
		lookup[key] = &ts[i]
	}
	return lookup, order
}
