// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package report renders review results into the supported output
// formats. Formatters register themselves with the default registry at
// init time; the CLI and the web export endpoint both go through
// Export/ExportForWeb so the two surfaces stay byte-identical.
package report

import (
	"fmt"
	"sort"
	"strings"

	"docconform/internal/document"
	"docconform/internal/reconcile"
	"docconform/internal/review"
	"docconform/internal/terms"
)

// Options defines configuration options for formatters.
type Options struct {
	SeverityFilter map[string]bool // which severity levels to display (high/warn/info)
	Verbose        bool            // whether to display detailed information
	NoColor        bool            // whether to disable colored output
	ShowEvidence   bool            // whether to display evidence snippets
}

// Data is the material a formatter renders. Review, document summaries
// and the audit trail are optional; bare CLI runs carry only terms,
// issues and the grid.
type Data struct {
	Review        *review.Review
	Executed      *document.Summary
	Approved      *document.Summary
	ApprovedTerms []terms.Term
	ExecutedTerms []terms.Term
	TermMatches   map[string]bool // executed term key -> value agrees with approved side
	Issues        []reconcile.Issue
	Waived        []reconcile.WaivedIssue
	Grid          []reconcile.GridRow
	Audit         []review.AuditEvent
}

// FromResult builds formatter input from an engine run. rev may be nil
// for unstored runs.
func FromResult(rev *review.Review, res *review.Result) Data {
	matches := make(map[string]bool, len(res.ExecutedTerms))
	for _, t := range res.ExecutedTerms {
		matches[t.Key] = res.TermIsMatch(t)
	}
	executed := res.Executed
	return Data{
		Review:        rev,
		Executed:      &executed,
		Approved:      res.Approved,
		ApprovedTerms: res.ApprovedTerms,
		ExecutedTerms: res.ExecutedTerms,
		TermMatches:   matches,
		Issues:        res.Issues,
		Grid:          res.Grid,
		Audit:         res.Audit,
	}
}

// Terms returns approved then executed terms as one slice.
func (d Data) Terms() []terms.Term {
	all := make([]terms.Term, 0, len(d.ApprovedTerms)+len(d.ExecutedTerms))
	all = append(all, d.ApprovedTerms...)
	all = append(all, d.ExecutedTerms...)
	return all
}

// TermIsMatch reports whether a term's value agrees across documents.
// Approved terms and executed terms without a recorded comparison count
// as matching.
func (d Data) TermIsMatch(t terms.Term) bool {
	if t.Source != terms.SourceExecuted {
		return true
	}
	if match, ok := d.TermMatches[t.Key]; ok {
		return match
	}
	return true
}

// Formatter interface defines methods that all output formatters must implement.
type Formatter interface {
	// Format renders the review data in the formatter's output format.
	Format(data Data, options Options) (string, error)

	// Name returns the name of the formatter (e.g., "json", "text", "csv").
	Name() string

	// Description returns a brief description of what this formatter outputs.
	Description() string

	// FileExtension returns the recommended file extension for this format.
	FileExtension() string
}

// Registry holds all registered formatters.
type Registry struct {
	formatters map[string]Formatter
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
	}
}

// Register adds a formatter to the registry.
func (r *Registry) Register(formatter Formatter) {
	r.formatters[formatter.Name()] = formatter
}

// Get retrieves a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	formatter, exists := r.formatters[name]
	return formatter, exists
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatInfo provides metadata about a formatter for web integration.
type FormatInfo struct {
	Name         string
	Description  string
	Extension    string
	MimeType     string
	WebSupported bool
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register is a convenience function to register a formatter with the default registry.
func Register(formatter Formatter) {
	DefaultRegistry.Register(formatter)
}

// Get is a convenience function to get a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// List is a convenience function to list all formatters in the default registry.
func List() []string {
	return DefaultRegistry.List()
}

// Export renders review data in the named format. Both the CLI and the
// web export endpoint go through here.
func Export(format string, data Data, options Options) (string, error) {
	formatter, exists := Get(format)
	if !exists {
		return "", fmt.Errorf("unsupported format '%s'. Available formats: %s", format, strings.Join(List(), ", "))
	}
	return formatter.Format(data, options)
}

// ExportForWeb provides web-friendly export with proper MIME types and filenames.
func ExportForWeb(format string, data Data, options Options) (content string, mimeType string, filename string, err error) {
	content, err = Export(format, data, options)
	if err != nil {
		return "", "", "", err
	}

	info := GetFormatInfo(format)
	mimeType = info.MimeType
	filename = "docconform-report" + info.Extension

	return content, mimeType, filename, nil
}

// GetFormatInfo returns metadata about a specific formatter.
func GetFormatInfo(name string) FormatInfo {
	formatter, exists := Get(name)
	if !exists {
		return FormatInfo{}
	}

	info := FormatInfo{
		Name:         formatter.Name(),
		Description:  formatter.Description(),
		Extension:    formatter.FileExtension(),
		WebSupported: true,
	}

	switch name {
	case "json":
		info.MimeType = "application/json"
	case "csv":
		info.MimeType = "text/csv"
	case "yaml":
		info.MimeType = "application/x-yaml"
	case "text":
		info.MimeType = "text/plain"
	case "xlsx":
		info.MimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		info.MimeType = "application/octet-stream"
	}

	return info
}

// GetSupportedFormats returns information about all available formatters.
func GetSupportedFormats() []FormatInfo {
	var formats []FormatInfo
	for _, name := range List() {
		formats = append(formats, GetFormatInfo(name))
	}
	return formats
}

// ParseSeverityLevels parses a comma-separated severity filter
// expression ("high,warn", "all") into the lookup the formatters use.
func ParseSeverityLevels(levels string) map[string]bool {
	result := map[string]bool{
		"high": false,
		"warn": false,
		"info": false,
	}

	for _, level := range strings.Split(levels, ",") {
		switch strings.ToLower(strings.TrimSpace(level)) {
		case "all", "":
			result["high"] = true
			result["warn"] = true
			result["info"] = true
		case "high":
			result["high"] = true
		case "warn":
			result["warn"] = true
		case "info":
			result["info"] = true
		}
	}

	return result
}

// SeverityEnabled reports whether the filter admits a severity. A nil
// filter admits everything.
func SeverityEnabled(filter map[string]bool, severity reconcile.Severity) bool {
	if filter == nil {
		return true
	}
	return filter[strings.ToLower(string(severity))]
}

// FilterIssues returns the issues admitted by the severity filter, in
// display order (most severe first, then by code).
func FilterIssues(issues []reconcile.Issue, filter map[string]bool) []reconcile.Issue {
	filtered := make([]reconcile.Issue, 0, len(issues))
	for _, issue := range issues {
		if SeverityEnabled(filter, issue.Severity) {
			filtered = append(filtered, issue)
		}
	}
	SortIssues(filtered)
	return filtered
}

// SortIssues orders issues by severity rank descending, then code.
func SortIssues(issues []reconcile.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity.Rank() != issues[j].Severity.Rank() {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		}
		return issues[i].Code < issues[j].Code
	})
}
