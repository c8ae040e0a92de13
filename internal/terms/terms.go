// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package terms extracts key loan terms from agreement text using an
// ordered rule catalog. Every extracted term carries evidence from the
// document it came from; a term without matching text is never created.
package terms

// Source identifies which document a term was extracted from.
type Source string

const (
	SourceApproved     Source = "APPROVED"
	SourceExecuted     Source = "EXECUTED"
	SourceTermSheet    Source = "TERMSHEET"
	SourceVerification Source = "VERIFICATION"
	SourceInfo         Source = "INFO"
)

// Page is one page of input text, numbered as in the source document.
type Page struct {
	Number int
	Text   string
}

// Term is a single extracted term with its evidence.
type Term struct {
	Key              string  `json:"key"`
	Label            string  `json:"label"`
	Value            string  `json:"value"`
	Source           Source  `json:"source"`
	Page             int     `json:"page"`
	EvidenceText     string  `json:"evidence_text"`
	EvidenceLocation string  `json:"evidence_location"`
	Confidence       float64 `json:"confidence"`
	RawMatch         string  `json:"raw_match"`  // full regex match before value extraction
	RawValue         string  `json:"raw_value"`  // extracted value before normalization
	Normalized       bool    `json:"normalized"` // whether normalization changed the value
}
