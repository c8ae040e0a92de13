// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"testing"

	"docconform/internal/reconcile"
)

type fakeFormatter struct {
	name string
}

func (f *fakeFormatter) Format(data Data, options Options) (string, error) { return f.name, nil }
func (f *fakeFormatter) Name() string                                     { return f.name }
func (f *fakeFormatter) Description() string                              { return "fake" }
func (f *fakeFormatter) FileExtension() string                            { return ".fake" }

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeFormatter{name: "alpha"})
	registry.Register(&fakeFormatter{name: "beta"})

	if _, ok := registry.Get("alpha"); !ok {
		t.Fatal("expected alpha formatter to be registered")
	}
	if _, ok := registry.Get("missing"); ok {
		t.Fatal("expected missing formatter to be absent")
	}

	names := registry.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("unexpected formatter list: %v", names)
	}
}

func TestParseSeverityLevels(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect map[string]bool
	}{
		{
			name:   "all",
			input:  "all",
			expect: map[string]bool{"high": true, "warn": true, "info": true},
		},
		{
			name:   "high only",
			input:  "high",
			expect: map[string]bool{"high": true, "warn": false, "info": false},
		},
		{
			name:   "high and warn with spaces",
			input:  "high, warn",
			expect: map[string]bool{"high": true, "warn": true, "info": false},
		},
		{
			name:   "empty means all",
			input:  "",
			expect: map[string]bool{"high": true, "warn": true, "info": true},
		},
		{
			name:   "unknown levels ignored",
			input:  "critical,info",
			expect: map[string]bool{"high": false, "warn": false, "info": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSeverityLevels(tt.input)
			for level, want := range tt.expect {
				if got[level] != want {
					t.Errorf("level %q = %v, want %v", level, got[level], want)
				}
			}
		})
	}
}

func TestFilterIssuesOrdersBySeverityThenCode(t *testing.T) {
	issues := []reconcile.Issue{
		{Code: reconcile.CodeCompleteness, Severity: reconcile.SeverityWarn},
		{Code: reconcile.CodeClausePresent, Severity: reconcile.SeverityInfo},
		{Code: reconcile.CodeMismatch, Severity: reconcile.SeverityHigh},
		{Code: reconcile.CodeMissingClause, Severity: reconcile.SeverityWarn},
	}

	filtered := FilterIssues(issues, nil)
	if len(filtered) != 4 {
		t.Fatalf("expected all issues with nil filter, got %d", len(filtered))
	}
	if filtered[0].Severity != reconcile.SeverityHigh {
		t.Errorf("expected HIGH first, got %s", filtered[0].Severity)
	}
	if filtered[1].Code != reconcile.CodeCompleteness || filtered[2].Code != reconcile.CodeMissingClause {
		t.Errorf("expected WARN issues ordered by code, got %s then %s", filtered[1].Code, filtered[2].Code)
	}
	if filtered[3].Severity != reconcile.SeverityInfo {
		t.Errorf("expected INFO last, got %s", filtered[3].Severity)
	}
}

func TestFilterIssuesDropsDisabledLevels(t *testing.T) {
	issues := []reconcile.Issue{
		{Code: reconcile.CodeMismatch, Severity: reconcile.SeverityHigh},
		{Code: reconcile.CodeCompleteness, Severity: reconcile.SeverityWarn},
		{Code: reconcile.CodeClausePresent, Severity: reconcile.SeverityInfo},
	}

	filtered := FilterIssues(issues, map[string]bool{"high": true})
	if len(filtered) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(filtered))
	}
	if filtered[0].Code != reconcile.CodeMismatch {
		t.Errorf("expected MISMATCH, got %s", filtered[0].Code)
	}
}

func TestGetFormatInfoUnknownFormat(t *testing.T) {
	info := GetFormatInfo("no-such-format")
	if info.Name != "" || info.MimeType != "" {
		t.Fatalf("expected zero FormatInfo for unknown format, got %+v", info)
	}
}
