// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package shared holds the wire structures the json and yaml formatters
// both render, so the two outputs stay structurally identical.
package shared

import (
	"time"

	"docconform/internal/document"
	"docconform/internal/reconcile"
	"docconform/internal/report"
)

// Report is the top-level structure for JSON/YAML output. It mirrors
// the review-detail serialization the web API exposes.
type Report struct {
	Review  *ReviewRecord  `json:"review,omitempty" yaml:"review,omitempty"`
	Summary Summary        `json:"summary" yaml:"summary"`
	Terms   []TermRecord   `json:"terms" yaml:"terms"`
	Issues  []IssueRecord  `json:"issues" yaml:"issues"`
	Waived  []WaivedRecord `json:"waived,omitempty" yaml:"waived,omitempty"`
	Audit   []AuditRecord  `json:"audit,omitempty" yaml:"audit,omitempty"`
}

// ReviewRecord carries review identity and lifecycle metadata.
type ReviewRecord struct {
	ID                string `json:"id" yaml:"id"`
	Status            string `json:"status" yaml:"status"`
	BorrowerName      string `json:"borrowerName,omitempty" yaml:"borrowerName,omitempty"`
	FacilityName      string `json:"facilityName,omitempty" yaml:"facilityName,omitempty"`
	CreatedAt         string `json:"createdAt" yaml:"createdAt"`
	UpdatedAt         string `json:"updatedAt" yaml:"updatedAt"`
	ExecutedFileName  string `json:"executedFileName" yaml:"executedFileName"`
	ExecutedFileHash  string `json:"executedFileHash,omitempty" yaml:"executedFileHash,omitempty"`
	TermSheetFileName string `json:"termSheetFileName,omitempty" yaml:"termSheetFileName,omitempty"`
	TermSheetFileHash string `json:"termSheetFileHash,omitempty" yaml:"termSheetFileHash,omitempty"`
}

// DocumentRecord summarizes one extracted document.
type DocumentRecord struct {
	Filename          string   `json:"filename" yaml:"filename"`
	SHA256            string   `json:"sha256" yaml:"sha256"`
	PageCount         int      `json:"pageCount" yaml:"pageCount"`
	PagesWithText     int      `json:"pagesWithText" yaml:"pagesWithText"`
	ExtractionMethods []string `json:"extractionMethods,omitempty" yaml:"extractionMethods,omitempty"`
}

// Summary carries the headline counts of a review run.
type Summary struct {
	ExecutedDocument *DocumentRecord `json:"executedDocument,omitempty" yaml:"executedDocument,omitempty"`
	ApprovedDocument *DocumentRecord `json:"approvedDocument,omitempty" yaml:"approvedDocument,omitempty"`
	ApprovedTerms    int             `json:"approvedTerms" yaml:"approvedTerms"`
	ExecutedTerms    int             `json:"executedTerms" yaml:"executedTerms"`
	Issues           int             `json:"issues" yaml:"issues"`
	HighIssues       int             `json:"highIssues" yaml:"highIssues"`
	WarnIssues       int             `json:"warnIssues" yaml:"warnIssues"`
	InfoIssues       int             `json:"infoIssues" yaml:"infoIssues"`
	WaivedIssues     int             `json:"waivedIssues" yaml:"waivedIssues"`
}

// TermRecord is a single extracted term in JSON/YAML output.
type TermRecord struct {
	Key              string  `json:"key" yaml:"key"`
	Label            string  `json:"label" yaml:"label"`
	Value            string  `json:"value" yaml:"value"`
	Source           string  `json:"source" yaml:"source"`
	Confidence       float64 `json:"confidence" yaml:"confidence"`
	EvidenceText     string  `json:"evidenceText" yaml:"evidenceText"`
	EvidenceLocation string  `json:"evidenceLocation" yaml:"evidenceLocation"`
	IsMatch          bool    `json:"isMatch" yaml:"isMatch"`
}

// IssueRecord is a single finding in JSON/YAML output.
type IssueRecord struct {
	Severity         string `json:"severity" yaml:"severity"`
	Code             string `json:"code" yaml:"code"`
	Message          string `json:"message" yaml:"message"`
	RelatedTermKey   string `json:"relatedTermKey" yaml:"relatedTermKey"`
	RelatedTermLabel string `json:"relatedTermLabel" yaml:"relatedTermLabel"`
	Evidence         string `json:"evidence" yaml:"evidence"`
	ApprovedEvidence string `json:"approvedEvidence" yaml:"approvedEvidence"`
	ExecutedEvidence string `json:"executedEvidence" yaml:"executedEvidence"`
	RegulationImpact string `json:"regulationImpact" yaml:"regulationImpact"`
}

// WaivedRecord is a waived finding with its waiver provenance.
type WaivedRecord struct {
	Issue      IssueRecord `json:"finding" yaml:"finding"`
	WaivedBy   string      `json:"waivedBy" yaml:"waivedBy"`
	RuleReason string      `json:"ruleReason" yaml:"ruleReason"`
	ExpiresAt  string      `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Expired    bool        `json:"expired" yaml:"expired"`
}

// AuditRecord is one audit-trail entry in JSON/YAML output.
type AuditRecord struct {
	Actor     string `json:"actor" yaml:"actor"`
	Action    string `json:"action" yaml:"action"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Details   string `json:"details" yaml:"details"`
	Hash      string `json:"hash" yaml:"hash"`
}

// BuildReport converts review data into the shared wire shape, applying
// the severity filter and issue ordering.
func BuildReport(data report.Data, options Options) Report {
	issues := report.FilterIssues(data.Issues, options.SeverityFilter)

	out := Report{
		Summary: Summary{
			ApprovedTerms: len(data.ApprovedTerms),
			ExecutedTerms: len(data.ExecutedTerms),
			Issues:        len(issues),
			WaivedIssues:  len(data.Waived),
		},
		Terms:  make([]TermRecord, 0, len(data.ApprovedTerms)+len(data.ExecutedTerms)),
		Issues: make([]IssueRecord, 0, len(issues)),
	}

	if data.Review != nil {
		out.Review = &ReviewRecord{
			ID:                data.Review.ID.String(),
			Status:            string(data.Review.Status),
			BorrowerName:      data.Review.BorrowerName,
			FacilityName:      data.Review.FacilityName,
			CreatedAt:         data.Review.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:         data.Review.UpdatedAt.UTC().Format(time.RFC3339),
			ExecutedFileName:  data.Review.ExecutedFileName,
			ExecutedFileHash:  data.Review.ExecutedFileHash,
			TermSheetFileName: data.Review.TermSheetFileName,
			TermSheetFileHash: data.Review.TermSheetFileHash,
		}
	}
	if data.Executed != nil {
		out.Summary.ExecutedDocument = documentRecord(data.Executed)
	}
	if data.Approved != nil {
		out.Summary.ApprovedDocument = documentRecord(data.Approved)
	}

	for _, t := range data.Terms() {
		out.Terms = append(out.Terms, TermRecord{
			Key:              t.Key,
			Label:            t.Label,
			Value:            t.Value,
			Source:           string(t.Source),
			Confidence:       t.Confidence,
			EvidenceText:     t.EvidenceText,
			EvidenceLocation: t.EvidenceLocation,
			IsMatch:          data.TermIsMatch(t),
		})
	}

	for _, issue := range issues {
		out.Issues = append(out.Issues, issueRecord(issue))
		switch issue.Severity {
		case reconcile.SeverityHigh:
			out.Summary.HighIssues++
		case reconcile.SeverityWarn:
			out.Summary.WarnIssues++
		case reconcile.SeverityInfo:
			out.Summary.InfoIssues++
		}
	}

	for _, waived := range data.Waived {
		rec := WaivedRecord{
			Issue:      issueRecord(waived.Issue),
			WaivedBy:   waived.WaivedBy,
			RuleReason: waived.RuleReason,
			Expired:    waived.Expired,
		}
		if waived.ExpiresAt != nil {
			rec.ExpiresAt = waived.ExpiresAt.UTC().Format(time.RFC3339)
		}
		out.Waived = append(out.Waived, rec)
	}

	for _, event := range data.Audit {
		out.Audit = append(out.Audit, AuditRecord{
			Actor:     event.Actor,
			Action:    string(event.Action),
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Details:   event.Details,
			Hash:      event.Hash,
		})
	}

	return out
}

// Options aliases report.Options so callers of BuildReport read naturally.
type Options = report.Options

func documentRecord(summary *document.Summary) *DocumentRecord {
	return &DocumentRecord{
		Filename:          summary.Filename,
		SHA256:            summary.SHA256,
		PageCount:         summary.PageCount,
		PagesWithText:     summary.PagesWithText,
		ExtractionMethods: summary.ExtractionMethods,
	}
}

func issueRecord(issue reconcile.Issue) IssueRecord {
	return IssueRecord{
		Severity:         string(issue.Severity),
		Code:             string(issue.Code),
		Message:          issue.Message,
		RelatedTermKey:   issue.RelatedTermKey,
		RelatedTermLabel: issue.RelatedTermLabel,
		Evidence:         issue.Evidence,
		ApprovedEvidence: issue.ApprovedEvidence,
		ExecutedEvidence: issue.ExecutedEvidence,
		RegulationImpact: issue.RegulationImpact,
	}
}
