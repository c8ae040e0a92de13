// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docconform/internal/terms"
)

func TestBuildGrid(t *testing.T) {
	approved := []terms.Term{
		mkTerm("facility_amount", "Facility Amount", "USD 300,000,000", terms.SourceApproved),
		mkTerm("borrower", "Borrower", "Meridian Industrial Holdings Inc.", terms.SourceApproved),
		mkTerm("covenant_frequency", "Covenant Testing Frequency", "Quarterly", terms.SourceApproved),
	}
	executed := []terms.Term{
		mkTerm("facility_amount", "Facility Amount", "USD 6,000,000,000", terms.SourceExecuted),
		mkTerm("borrower", "Borrower", "Meridian Industrial Holdings Inc.", terms.SourceExecuted),
		mkTerm("bail_in_clause_present", "Bail-In Clause Present", "Yes", terms.SourceExecuted),
	}

	rows := BuildGrid(approved, executed)

	require.Len(t, rows, 4)
	assert.Equal(t, "bail_in_clause_present", rows[0].Key)
	assert.Equal(t, "borrower", rows[1].Key)
	assert.Equal(t, "covenant_frequency", rows[2].Key)
	assert.Equal(t, "facility_amount", rows[3].Key)

	assert.Equal(t, GridApprovedOnly, rows[0].Status)
	assert.Equal(t, "N/A", rows[0].ApprovedValue)
	assert.Equal(t, "Yes", rows[0].ExecutedValue)
	assert.Empty(t, rows[0].ApprovedLocation)
	assert.Equal(t, "Page 1", rows[0].ExecutedLocation)

	assert.Equal(t, GridMatch, rows[1].Status)

	assert.Equal(t, GridMissingExecuted, rows[2].Status)
	assert.Equal(t, "Quarterly", rows[2].ApprovedValue)
	assert.Equal(t, "N/A", rows[2].ExecutedValue)
	assert.Empty(t, rows[2].ExecutedLocation)

	assert.Equal(t, GridMismatch, rows[3].Status)
	assert.Equal(t, "USD 300,000,000", rows[3].ApprovedValue)
	assert.Equal(t, "USD 6,000,000,000", rows[3].ExecutedValue)
}

func TestBuildGrid_StatusUsesLiteralValues(t *testing.T) {
	// the grid reports stored values as-is; notation-insensitive
	// comparison belongs to CompareTerms
	approved := []terms.Term{mkTerm("facility_amount", "Facility Amount", "USD 300,000,000", terms.SourceApproved)}
	executed := []terms.Term{mkTerm("facility_amount", "Facility Amount", "$300,000,000", terms.SourceExecuted)}

	rows := BuildGrid(approved, executed)

	require.Len(t, rows, 1)
	assert.Equal(t, GridMismatch, rows[0].Status)
}

func TestBuildGrid_LabelAndConfidencePreferExecuted(t *testing.T) {
	approvedTerm := mkTerm("margin_bps", "Applicable Margin", "225 bps", terms.SourceApproved)
	approvedTerm.Confidence = 0.9
	executedTerm := mkTerm("margin_bps", "Margin", "225 bps", terms.SourceExecuted)
	executedTerm.Confidence = 0.75

	rows := BuildGrid([]terms.Term{approvedTerm}, []terms.Term{executedTerm})

	require.Len(t, rows, 1)
	assert.Equal(t, "Margin", rows[0].Label)
	assert.InDelta(t, 0.75, rows[0].Confidence, 1e-9)
	assert.Equal(t, GridMatch, rows[0].Status)
}

func TestBuildGrid_Empty(t *testing.T) {
	assert.Empty(t, BuildGrid(nil, nil))
}
