// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package csv

import (
	"fmt"
	"strings"

	"docconform/internal/reconcile"
	"docconform/internal/report"
)

// Formatter implements CSV output formatting. It renders the
// side-by-side term grid rather than the issue list: CSV exports feed
// spreadsheet review of the term comparison.
type Formatter struct{}

// NewFormatter creates a new CSV formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "csv"
}

func (f *Formatter) Description() string {
	return "Comma-separated term comparison grid for spreadsheet import"
}

func (f *Formatter) FileExtension() string {
	return ".csv"
}

var headers = []string{
	"Term Key",
	"Term Label",
	"Approved Value",
	"Approved Location",
	"Executed Value",
	"Executed Location",
	"Status",
	"Confidence",
}

func (f *Formatter) Format(data report.Data, options report.Options) (string, error) {
	rows := []string{strings.Join(headers, ",")}

	for _, row := range data.Grid {
		rows = append(rows, f.createCSVRow(row))
	}

	return strings.Join(rows, "\n"), nil
}

func (f *Formatter) createCSVRow(row reconcile.GridRow) string {
	fields := []string{
		f.escapeCSVField(row.Key),
		f.escapeCSVField(row.Label),
		f.escapeCSVField(row.ApprovedValue),
		f.escapeCSVField(row.ApprovedLocation),
		f.escapeCSVField(row.ExecutedValue),
		f.escapeCSVField(row.ExecutedLocation),
		f.escapeCSVField(string(row.Status)),
		fmt.Sprintf("%.2f", row.Confidence),
	}
	return strings.Join(fields, ",")
}

// escapeCSVField quotes fields that need it and defuses spreadsheet
// formula injection for values starting with =, +, - or @.
func (f *Formatter) escapeCSVField(field string) string {
	if len(field) > 0 {
		switch field[0] {
		case '=', '+', '-', '@':
			field = "'" + field
		}
	}

	if strings.ContainsAny(field, ",\"\n\r") {
		field = "\"" + strings.ReplaceAll(field, "\"", "\"\"") + "\""
	}
	return field
}

// Register the formatter during package initialization.
func init() {
	report.Register(NewFormatter())
}
