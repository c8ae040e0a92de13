// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goyaml "gopkg.in/yaml.v3"

	"docconform/internal/reconcile"
	"docconform/internal/report"
	_ "docconform/internal/report/csv"
	_ "docconform/internal/report/json"
	_ "docconform/internal/report/text"
	_ "docconform/internal/report/xlsx"
	_ "docconform/internal/report/yaml"
	"docconform/internal/terms"
)

func fixtureData() report.Data {
	approved := []terms.Term{{
		Key:              "facility_amount",
		Label:            "Facility Amount",
		Value:            "USD 300,000,000",
		Source:           terms.SourceApproved,
		Page:             1,
		EvidenceText:     "Facility Amount: USD 300,000,000",
		EvidenceLocation: "Page 1",
		Confidence:       0.85,
	}}
	executed := []terms.Term{{
		Key:              "facility_amount",
		Label:            "Facility Amount",
		Value:            "USD 6,000,000,000",
		Source:           terms.SourceExecuted,
		Page:             4,
		EvidenceText:     "Aggregate Commitments: $6,000,000,000",
		EvidenceLocation: "Page 4",
		Confidence:       0.85,
	}}
	return report.Data{
		ApprovedTerms: approved,
		ExecutedTerms: executed,
		TermMatches:   map[string]bool{"facility_amount": false},
		Issues: []reconcile.Issue{{
			Code:             reconcile.CodeMismatch,
			Severity:         reconcile.SeverityHigh,
			Message:          "Facility Amount differs between Approved Credit Summary and Executed Agreement",
			RelatedTermKey:   "facility_amount",
			RelatedTermLabel: "Facility Amount",
			Evidence:         "Approved: USD 300,000,000 vs Executed: USD 6,000,000,000",
			ApprovedEvidence: "Facility Amount: USD 300,000,000",
			ExecutedEvidence: "Aggregate Commitments: $6,000,000,000",
			RegulationImpact: "Material facility amount deviation requires credit committee escalation.",
		}},
		Grid: reconcile.BuildGrid(approved, executed),
	}
}

func TestExportAllRegisteredFormats(t *testing.T) {
	data := fixtureData()
	options := report.Options{NoColor: true}

	for _, format := range []string{"text", "json", "csv", "yaml", "xlsx"} {
		t.Run(format, func(t *testing.T) {
			out, err := report.Export(format, data, options)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := report.Export("bogus", fixtureData(), report.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format 'bogus'")
}

func TestJSONExportShape(t *testing.T) {
	out, err := report.Export("json", fixtureData(), report.Options{})
	require.NoError(t, err)

	var decoded struct {
		Summary struct {
			ExecutedTerms int `json:"executedTerms"`
			HighIssues    int `json:"highIssues"`
		} `json:"summary"`
		Terms []struct {
			Key     string `json:"key"`
			Source  string `json:"source"`
			IsMatch bool   `json:"isMatch"`
		} `json:"terms"`
		Issues []struct {
			Severity string `json:"severity"`
			Code     string `json:"code"`
			Evidence string `json:"evidence"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, 1, decoded.Summary.ExecutedTerms)
	assert.Equal(t, 1, decoded.Summary.HighIssues)
	require.Len(t, decoded.Terms, 2)
	assert.Equal(t, "APPROVED", decoded.Terms[0].Source)
	assert.True(t, decoded.Terms[0].IsMatch, "approved terms always count as matching")
	assert.False(t, decoded.Terms[1].IsMatch)
	require.Len(t, decoded.Issues, 1)
	assert.Equal(t, "HIGH", decoded.Issues[0].Severity)
	assert.Equal(t, "Approved: USD 300,000,000 vs Executed: USD 6,000,000,000", decoded.Issues[0].Evidence)
}

func TestYAMLExportMatchesJSONStructure(t *testing.T) {
	data := fixtureData()

	jsonOut, err := report.Export("json", data, report.Options{})
	require.NoError(t, err)
	yamlOut, err := report.Export("yaml", data, report.Options{})
	require.NoError(t, err)

	var fromJSON, fromYAML map[string]any
	require.NoError(t, json.Unmarshal([]byte(jsonOut), &fromJSON))
	require.NoError(t, goyaml.Unmarshal([]byte(yamlOut), &fromYAML))

	jsonSummary := fromJSON["summary"].(map[string]any)
	yamlSummary := fromYAML["summary"].(map[string]any)
	assert.EqualValues(t, jsonSummary["executedTerms"], yamlSummary["executedTerms"])
	assert.EqualValues(t, jsonSummary["highIssues"], yamlSummary["highIssues"])
}

func TestCSVExportGrid(t *testing.T) {
	out, err := report.Export("csv", fixtureData(), report.Options{})
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Term Key,Term Label,Approved Value,Approved Location,Executed Value,Executed Location,Status,Confidence", lines[0])
	assert.Contains(t, lines[1], "facility_amount")
	assert.Contains(t, lines[1], "MISMATCH")
}

func TestCSVExportSanitizesFormulaInjection(t *testing.T) {
	data := fixtureData()
	data.Grid = []reconcile.GridRow{{
		Key:           "borrower",
		Label:         "Borrower",
		ApprovedValue: `=HYPERLINK("http://example.com")`,
		ExecutedValue: `Acme "Holdings", Inc.`,
		Status:        reconcile.GridMismatch,
	}}

	out, err := report.Export("csv", data, report.Options{})
	require.NoError(t, err)

	assert.Contains(t, out, `'=HYPERLINK`)
	assert.Contains(t, out, `"Acme ""Holdings"", Inc."`)
}

func TestTextExportSummaryAndGrid(t *testing.T) {
	out, err := report.Export("text", fixtureData(), report.Options{NoColor: true, Verbose: true})
	require.NoError(t, err)

	assert.Contains(t, out, "DocConform Review Report")
	assert.Contains(t, out, "1 issues found (1 high)")
	assert.Contains(t, out, "MISMATCH")
	assert.Contains(t, out, "Regulatory impact:")
	assert.Contains(t, out, "Term comparison:")
}

func TestTextExportNoIssues(t *testing.T) {
	data := fixtureData()
	data.Issues = nil

	out, err := report.Export("text", data, report.Options{NoColor: true})
	require.NoError(t, err)
	assert.Contains(t, out, "No issues found.")
}

func TestSeverityFilterAppliesToExports(t *testing.T) {
	data := fixtureData()
	options := report.Options{SeverityFilter: report.ParseSeverityLevels("info")}

	out, err := report.Export("json", data, options)
	require.NoError(t, err)

	var decoded struct {
		Issues []any `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Empty(t, decoded.Issues)
}
