// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"sort"

	"docconform/internal/terms"
)

// GridStatus classifies one row of the side-by-side term grid.
// Export consumers key on these literal strings.
type GridStatus string

const (
	GridMatch           GridStatus = "MATCH"
	GridMismatch        GridStatus = "MISMATCH"
	GridMissingExecuted GridStatus = "MISSING_EXECUTED"
	GridApprovedOnly    GridStatus = "APPROVED_ONLY"
)

// GridRow pairs a term's approved and executed values for reporting.
type GridRow struct {
	Key              string     `json:"key"`
	Label            string     `json:"label"`
	ApprovedValue    string     `json:"approved_value"`
	ApprovedLocation string     `json:"approved_location"`
	ExecutedValue    string     `json:"executed_value"`
	ExecutedLocation string     `json:"executed_location"`
	Status           GridStatus `json:"status"`
	Confidence       float64    `json:"confidence"`
}

// absentValue marks a side that carries no value for a key. Locations
// stay empty on that side.
const absentValue = "N/A"

// BuildGrid produces one row per term key across both documents, sorted
// by key. Status is MATCH or MISMATCH on literal value equality when
// both sides carry the term, MISSING_EXECUTED when only the approved
// summary does, and APPROVED_ONLY when only the executed agreement
// does. Label and confidence prefer the executed side.
func BuildGrid(approved, executed []terms.Term) []GridRow {
	approvedLookup, _ := buildLookup(approved)
	executedLookup, _ := buildLookup(executed)

	keys := make([]string, 0, len(approvedLookup)+len(executedLookup))
	for key := range approvedLookup {
		keys = append(keys, key)
	}
	for key := range executedLookup {
		if _, seen := approvedLookup[key]; !seen {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	rows := make([]GridRow, 0, len(keys))
	for _, key := range keys {
		approvedTerm := approvedLookup[key]
		executedTerm := executedLookup[key]

		row := GridRow{
			Key:           key,
			Label:         key,
			ApprovedValue: absentValue,
			ExecutedValue: absentValue,
		}
		if approvedTerm != nil {
			row.Label = approvedTerm.Label
			row.ApprovedValue = approvedTerm.Value
			row.ApprovedLocation = approvedTerm.EvidenceLocation
			row.Confidence = approvedTerm.Confidence
		}
		if executedTerm != nil {
			row.Label = executedTerm.Label
			row.ExecutedValue = executedTerm.Value
			row.ExecutedLocation = executedTerm.EvidenceLocation
			row.Confidence = executedTerm.Confidence
		}

		switch {
		case approvedTerm != nil && executedTerm != nil:
			if approvedTerm.Value == executedTerm.Value {
				row.Status = GridMatch
			} else {
				row.Status = GridMismatch
			}
		case approvedTerm != nil:
			row.Status = GridMissingExecuted
		default:
			row.Status = GridApprovedOnly
		}

		rows = append(rows, row)
	}
	return rows
}
