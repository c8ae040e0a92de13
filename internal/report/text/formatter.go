// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"docconform/internal/reconcile"
	"docconform/internal/report"
)

// Formatter implements text-based output formatting.
type Formatter struct {
	colors map[string]*color.Color
}

// NewFormatter creates a new text formatter.
func NewFormatter() *Formatter {
	return &Formatter{
		colors: map[string]*color.Color{
			"green":   color.New(color.FgGreen),
			"yellow":  color.New(color.FgYellow),
			"red":     color.New(color.FgRed),
			"cyan":    color.New(color.FgCyan),
			"magenta": color.New(color.FgMagenta),
			"white":   color.New(color.FgWhite, color.Bold),
		},
	}
}

func (f *Formatter) Name() string {
	return "text"
}

func (f *Formatter) Description() string {
	return "Human-readable text output with colors and tables"
}

func (f *Formatter) FileExtension() string {
	return ".txt"
}

func (f *Formatter) Format(data report.Data, options report.Options) (string, error) {
	if options.NoColor {
		color.NoColor = true
	}

	var builder strings.Builder

	f.appendHeader(&builder, data, options)

	issues := report.FilterIssues(data.Issues, options.SeverityFilter)
	f.appendSummary(&builder, data, issues, options)

	if len(issues) > 0 {
		f.appendIssueTable(&builder, issues, options)
		if options.Verbose || options.ShowEvidence {
			for _, issue := range issues {
				f.appendDetailedIssue(&builder, issue, options)
			}
		}
	}

	if len(data.Waived) > 0 {
		f.appendWaived(&builder, data.Waived, options)
	}

	if len(data.Grid) > 0 {
		f.appendGrid(&builder, data.Grid, options)
	}

	return builder.String(), nil
}

func (f *Formatter) appendHeader(builder *strings.Builder, data report.Data, options report.Options) {
	title := "DocConform Review Report"
	if !options.NoColor {
		title = f.colors["white"].Sprint(title)
	}
	builder.WriteString(title + "\n")
	builder.WriteString(strings.Repeat("=", 24) + "\n")

	if rev := data.Review; rev != nil {
		if rev.BorrowerName != "" {
			fmt.Fprintf(builder, "Borrower:  %s\n", rev.BorrowerName)
		}
		if rev.FacilityName != "" {
			fmt.Fprintf(builder, "Facility:  %s\n", rev.FacilityName)
		}
		fmt.Fprintf(builder, "Status:    %s\n", rev.Status)
	}
	if data.Executed != nil {
		fmt.Fprintf(builder, "Executed:  %s (%d pages)\n", data.Executed.Filename, data.Executed.PageCount)
	}
	if data.Approved != nil {
		fmt.Fprintf(builder, "Approved:  %s (%d pages)\n", data.Approved.Filename, data.Approved.PageCount)
	}
	builder.WriteString("\n")
}

func (f *Formatter) appendSummary(builder *strings.Builder, data report.Data, issues []reconcile.Issue, options report.Options) {
	counts := reconcile.CountBySeverity(issues)

	if len(issues) == 0 && len(data.Waived) == 0 {
		line := "No issues found."
		if !options.NoColor {
			line = f.colors["green"].Sprint(line)
		}
		builder.WriteString(line + "\n\n")
		return
	}

	parts := make([]string, 0, 3)
	for _, sev := range []reconcile.Severity{reconcile.SeverityHigh, reconcile.SeverityWarn, reconcile.SeverityInfo} {
		if counts[sev] == 0 {
			continue
		}
		part := fmt.Sprintf("%d %s", counts[sev], strings.ToLower(string(sev)))
		if !options.NoColor {
			part = f.severityColor(sev).Sprint(part)
		}
		parts = append(parts, part)
	}

	fmt.Fprintf(builder, "%d issues found (%s)", len(issues), strings.Join(parts, ", "))
	if len(data.Waived) > 0 {
		fmt.Fprintf(builder, ", %d waived", len(data.Waived))
	}
	builder.WriteString("\n\n")
}

func (f *Formatter) appendIssueTable(builder *strings.Builder, issues []reconcile.Issue, options report.Options) {
	header := fmt.Sprintf("%-8s %-16s %-28s %s\n", "LEVEL", "CODE", "TERM", "MESSAGE")
	if !options.NoColor {
		header = f.colors["white"].Sprint(header)
	}
	builder.WriteString(header)
	separator := strings.Repeat("-", 96) + "\n"
	if !options.NoColor {
		separator = f.colors["white"].Sprint(separator)
	}
	builder.WriteString(separator)

	for _, issue := range issues {
		levelStr := fmt.Sprintf("[%-4s]", issue.Severity)
		if !options.NoColor {
			levelStr = f.severityColor(issue.Severity).Sprintf("[%-4s]", issue.Severity)
		}

		codeStr := fmt.Sprintf("%-16s", issue.Code)
		if !options.NoColor {
			codeStr = f.colors["cyan"].Sprintf("%-16s", issue.Code)
		}

		term := issue.RelatedTermLabel
		if term == "" {
			term = issue.RelatedTermKey
		}
		if len(term) > 28 {
			term = term[:25] + "..."
		}

		fmt.Fprintf(builder, "%s   %s %-28s %s\n", levelStr, codeStr, term, issue.Message)
	}
	builder.WriteString("\n")
}

func (f *Formatter) appendDetailedIssue(builder *strings.Builder, issue reconcile.Issue, options report.Options) {
	title := "=== Issue Details ==="
	if !options.NoColor {
		title = f.colors["white"].Sprint(title)
	}
	builder.WriteString(title + "\n")

	f.appendField(builder, "Severity", string(issue.Severity), options)
	f.appendField(builder, "Code", string(issue.Code), options)
	f.appendField(builder, "Term", issue.RelatedTermLabel, options)
	f.appendField(builder, "Message", issue.Message, options)
	f.appendField(builder, "Evidence", issue.Evidence, options)
	if issue.ApprovedEvidence != "" {
		f.appendField(builder, "Approved evidence", issue.ApprovedEvidence, options)
	}
	if issue.ExecutedEvidence != "" {
		f.appendField(builder, "Executed evidence", issue.ExecutedEvidence, options)
	}
	if issue.RegulationImpact != "" {
		f.appendField(builder, "Regulatory impact", issue.RegulationImpact, options)
	}
	builder.WriteString("\n")
}

func (f *Formatter) appendField(builder *strings.Builder, name, value string, options report.Options) {
	if value == "" {
		return
	}
	if !options.NoColor {
		f.colors["cyan"].Fprintf(builder, "%s: ", name)
		fmt.Fprintf(builder, "%s\n", value)
		return
	}
	fmt.Fprintf(builder, "%s: %s\n", name, value)
}

func (f *Formatter) appendWaived(builder *strings.Builder, waived []reconcile.WaivedIssue, options report.Options) {
	header := "Waived issues:"
	if !options.NoColor {
		header = f.colors["white"].Sprint(header)
	}
	builder.WriteString(header + "\n")

	for _, w := range waived {
		tag := "[WAIVED]"
		if !options.NoColor {
			tag = f.colors["magenta"].Sprint(tag)
		}
		fmt.Fprintf(builder, "%s %s: %s (waived by %s: %s%s)\n",
			tag, w.Issue.Code, w.Issue.Message, w.WaivedBy, w.RuleReason,
			f.expirationSuffix(w))
	}
	builder.WriteString("\n")
}

func (f *Formatter) expirationSuffix(w reconcile.WaivedIssue) string {
	if w.ExpiresAt == nil {
		return ""
	}
	if w.Expired {
		return ", expired"
	}
	days := int(time.Until(*w.ExpiresAt).Hours() / 24)
	switch {
	case days <= 0:
		return ", expires today"
	case days == 1:
		return ", expires in 1 day"
	default:
		return fmt.Sprintf(", expires in %d days", days)
	}
}

func (f *Formatter) appendGrid(builder *strings.Builder, grid []reconcile.GridRow, options report.Options) {
	header := "Term comparison:"
	if !options.NoColor {
		header = f.colors["white"].Sprint(header)
	}
	builder.WriteString(header + "\n")

	labelWidth, valueWidth := gridWidths(grid)
	head := fmt.Sprintf("%-*s %-*s %-*s %-16s %s\n",
		labelWidth, "TERM", valueWidth, "APPROVED", valueWidth, "EXECUTED", "STATUS", "CONF%")
	if !options.NoColor {
		head = f.colors["white"].Sprint(head)
	}
	builder.WriteString(head)

	for _, row := range grid {
		statusStr := fmt.Sprintf("%-16s", row.Status)
		if !options.NoColor {
			statusStr = f.statusColor(row.Status).Sprintf("%-16s", row.Status)
		}
		fmt.Fprintf(builder, "%-*s %-*s %-*s %s %6.2f%%\n",
			labelWidth, truncate(row.Label, labelWidth),
			valueWidth, truncate(row.ApprovedValue, valueWidth),
			valueWidth, truncate(row.ExecutedValue, valueWidth),
			statusStr, row.Confidence*100)
	}
}

func (f *Formatter) severityColor(severity reconcile.Severity) *color.Color {
	switch severity {
	case reconcile.SeverityHigh:
		return f.colors["red"]
	case reconcile.SeverityWarn:
		return f.colors["yellow"]
	default:
		return f.colors["green"]
	}
}

func (f *Formatter) statusColor(status reconcile.GridStatus) *color.Color {
	switch status {
	case reconcile.GridMatch:
		return f.colors["green"]
	case reconcile.GridMismatch:
		return f.colors["red"]
	default:
		return f.colors["yellow"]
	}
}

// gridWidths sizes the label and value columns from the data, capped
// for readability.
func gridWidths(grid []reconcile.GridRow) (labelWidth, valueWidth int) {
	labelWidth, valueWidth = 12, 12
	for _, row := range grid {
		if n := len(row.Label); n > labelWidth {
			labelWidth = n
		}
		for _, v := range []string{row.ApprovedValue, row.ExecutedValue} {
			if n := len(v); n > valueWidth {
				valueWidth = n
			}
		}
	}
	if labelWidth > 32 {
		labelWidth = 32
	}
	if valueWidth > 36 {
		valueWidth = 36
	}
	return labelWidth, valueWidth
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

// Register the formatter during package initialization.
func init() {
	report.Register(NewFormatter())
}
