// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"docconform/internal/report"
)

// Formatter implements XLSX workbook output: a Summary sheet with the
// review headline, a Terms sheet carrying the comparison grid, and an
// Issues sheet with the findings.
type Formatter struct{}

// NewFormatter creates a new XLSX formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "xlsx"
}

func (f *Formatter) Description() string {
	return "Excel workbook with summary, term grid and issue sheets"
}

func (f *Formatter) FileExtension() string {
	return ".xlsx"
}

func (f *Formatter) Format(data report.Data, options report.Options) (string, error) {
	wb := excelize.NewFile()
	defer wb.Close()

	headerStyle, err := wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE6F1"}},
	})
	if err != nil {
		return "", fmt.Errorf("xlsx style: %w", err)
	}

	// The workbook opens with one default sheet; rename it to Summary.
	if err := wb.SetSheetName(wb.GetSheetName(0), "Summary"); err != nil {
		return "", fmt.Errorf("xlsx summary sheet: %w", err)
	}
	if err := f.writeSummary(wb, data, options, headerStyle); err != nil {
		return "", err
	}
	if err := f.writeTerms(wb, data, headerStyle); err != nil {
		return "", err
	}
	if err := f.writeIssues(wb, data, options, headerStyle); err != nil {
		return "", err
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("xlsx write: %w", err)
	}
	return buf.String(), nil
}

func (f *Formatter) writeSummary(wb *excelize.File, data report.Data, options report.Options, headerStyle int) error {
	const sheet = "Summary"

	issues := report.FilterIssues(data.Issues, options.SeverityFilter)
	counts := map[string]int{}
	for _, issue := range issues {
		counts[string(issue.Severity)]++
	}

	rows := [][]any{
		{"DocConform Review Report", ""},
	}
	if rev := data.Review; rev != nil {
		rows = append(rows,
			[]any{"Review ID", rev.ID.String()},
			[]any{"Status", string(rev.Status)},
			[]any{"Borrower", rev.BorrowerName},
			[]any{"Facility", rev.FacilityName},
		)
	}
	if data.Executed != nil {
		rows = append(rows,
			[]any{"Executed document", data.Executed.Filename},
			[]any{"Executed SHA-256", data.Executed.SHA256},
			[]any{"Executed pages", data.Executed.PageCount},
		)
	}
	if data.Approved != nil {
		rows = append(rows,
			[]any{"Approved document", data.Approved.Filename},
			[]any{"Approved SHA-256", data.Approved.SHA256},
			[]any{"Approved pages", data.Approved.PageCount},
		)
	}
	rows = append(rows,
		[]any{"Approved terms", len(data.ApprovedTerms)},
		[]any{"Executed terms", len(data.ExecutedTerms)},
		[]any{"Issues", len(issues)},
		[]any{"High severity", counts["HIGH"]},
		[]any{"Warnings", counts["WARN"]},
		[]any{"Informational", counts["INFO"]},
		[]any{"Waived", len(data.Waived)},
	)

	for i, row := range rows {
		for j, value := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := wb.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("xlsx summary cell: %w", err)
			}
		}
	}
	if err := wb.SetCellStyle(sheet, "A1", "A1", headerStyle); err != nil {
		return fmt.Errorf("xlsx summary style: %w", err)
	}

	_ = wb.SetColWidth(sheet, "A", "A", 22)
	_ = wb.SetColWidth(sheet, "B", "B", 70)
	return nil
}

func (f *Formatter) writeTerms(wb *excelize.File, data report.Data, headerStyle int) error {
	const sheet = "Terms"
	if _, err := wb.NewSheet(sheet); err != nil {
		return fmt.Errorf("xlsx terms sheet: %w", err)
	}

	headers := []string{"Term Key", "Term Label", "Approved Value", "Approved Location",
		"Executed Value", "Executed Location", "Status", "Confidence"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := wb.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("xlsx terms header: %w", err)
		}
	}
	if err := wb.SetCellStyle(sheet, "A1", "H1", headerStyle); err != nil {
		return fmt.Errorf("xlsx terms style: %w", err)
	}

	for i, row := range data.Grid {
		values := []any{row.Key, row.Label, row.ApprovedValue, row.ApprovedLocation,
			row.ExecutedValue, row.ExecutedLocation, string(row.Status), row.Confidence}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := wb.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("xlsx terms cell: %w", err)
			}
		}
	}

	_ = wb.SetColWidth(sheet, "A", "B", 26)
	_ = wb.SetColWidth(sheet, "C", "C", 32)
	_ = wb.SetColWidth(sheet, "D", "D", 16)
	_ = wb.SetColWidth(sheet, "E", "E", 32)
	_ = wb.SetColWidth(sheet, "F", "F", 16)
	_ = wb.SetColWidth(sheet, "G", "H", 16)
	return nil
}

func (f *Formatter) writeIssues(wb *excelize.File, data report.Data, options report.Options, headerStyle int) error {
	const sheet = "Issues"
	if _, err := wb.NewSheet(sheet); err != nil {
		return fmt.Errorf("xlsx issues sheet: %w", err)
	}

	headers := []string{"Severity", "Code", "Term", "Message", "Evidence",
		"Approved Evidence", "Executed Evidence", "Regulatory Impact"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := wb.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("xlsx issues header: %w", err)
		}
	}
	if err := wb.SetCellStyle(sheet, "A1", "H1", headerStyle); err != nil {
		return fmt.Errorf("xlsx issues style: %w", err)
	}

	issues := report.FilterIssues(data.Issues, options.SeverityFilter)
	for i, issue := range issues {
		values := []any{string(issue.Severity), string(issue.Code), issue.RelatedTermLabel,
			issue.Message, issue.Evidence, issue.ApprovedEvidence, issue.ExecutedEvidence,
			issue.RegulationImpact}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := wb.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("xlsx issues cell: %w", err)
			}
		}
	}

	_ = wb.SetColWidth(sheet, "A", "B", 14)
	_ = wb.SetColWidth(sheet, "C", "C", 26)
	_ = wb.SetColWidth(sheet, "D", "D", 60)
	_ = wb.SetColWidth(sheet, "E", "G", 48)
	_ = wb.SetColWidth(sheet, "H", "H", 60)
	return nil
}

// Register the formatter during package initialization.
func init() {
	report.Register(NewFormatter())
}
