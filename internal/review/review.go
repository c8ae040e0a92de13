// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package review orchestrates a conformance review: text extraction from
// both documents, term extraction, normalization and validation, plus the
// audit trail every run leaves behind. The executed agreement is always
// required; the approved credit summary is optional, and issues are only
// produced when it is present.
package review

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Processing errors surfaced to callers. The web layer maps these to
// HTTP status codes.
var (
	ErrAlreadyProcessed = errors.New("review has already been processed")
	ErrReviewNotFound   = errors.New("review not found")
)

// Status tracks a review through its lifecycle.
type Status string

const (
	StatusUploaded   Status = "UPLOADED"
	StatusProcessing Status = "PROCESSING"
	StatusComplete   Status = "COMPLETE"
	StatusFailed     Status = "FAILED"
)

// Review is one conformance review of an executed agreement, optionally
// against an approved credit summary (the term sheet upload).
type Review struct {
	ID                uuid.UUID `json:"id"`
	Status            Status    `json:"status"`
	BorrowerName      string    `json:"borrower_name"`
	FacilityName      string    `json:"facility_name"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	ExecutedFileName  string    `json:"executed_file_name"`
	ExecutedFilePath  string    `json:"-"`
	ExecutedFileHash  string    `json:"executed_file_hash"`
	TermSheetFileName string    `json:"term_sheet_file_name"`
	TermSheetFilePath string    `json:"-"`
	TermSheetFileHash string    `json:"term_sheet_file_hash"`
}

// NewReview creates a review in UPLOADED state.
func NewReview(executedFileName, termSheetFileName string) *Review {
	now := time.Now().UTC()
	return &Review{
		ID:                uuid.New(),
		Status:            StatusUploaded,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExecutedFileName:  executedFileName,
		TermSheetFileName: termSheetFileName,
	}
}

// HasTermSheet reports whether an approved credit summary was uploaded.
func (r *Review) HasTermSheet() bool {
	return r.TermSheetFileName != ""
}

// AuditAction names the recorded operation.
type AuditAction string

const (
	ActionUpload   AuditAction = "UPLOAD"
	ActionExtract  AuditAction = "EXTRACT"
	ActionValidate AuditAction = "VALIDATE"
	ActionExport   AuditAction = "EXPORT"
)

// Default actors. Uploads and exports may carry a caller-supplied actor
// instead; engine events never do.
const (
	ActorSystemUser = "System User"
	ActorEngine     = "DocConform Engine"
)

// AuditEvent is one immutable entry in a review's audit trail. Hash
// anchors the event to the document or review it describes.
type AuditEvent struct {
	ID        uuid.UUID   `json:"id"`
	ReviewID  uuid.UUID   `json:"review_id"`
	Actor     string      `json:"actor"`
	Action    AuditAction `json:"action"`
	Timestamp time.Time   `json:"timestamp"`
	Details   string      `json:"details"`
	Hash      string      `json:"hash"`
}

func newAuditEvent(reviewID uuid.UUID, actor string, action AuditAction, details, hash string) AuditEvent {
	return AuditEvent{
		ID:        uuid.New(),
		ReviewID:  reviewID,
		Actor:     actor,
		Action:    action,
		Timestamp: time.Now().UTC(),
		Details:   details,
		Hash:      hash,
	}
}

// NewUploadEvent records the initial document upload.
func NewUploadEvent(rev *Review, actor string) AuditEvent {
	if actor == "" {
		actor = ActorSystemUser
	}
	details := "Uploaded " + rev.ExecutedFileName
	if rev.HasTermSheet() {
		details += " and " + rev.TermSheetFileName
	}
	return newAuditEvent(rev.ID, actor, ActionUpload, details, hashPrefix(rev.ExecutedFileHash))
}

// NewExportEvent records an export of review data. The hash anchors the
// export to the review identity rather than a single document.
func NewExportEvent(rev *Review, actor, format string) AuditEvent {
	if actor == "" {
		actor = ActorSystemUser
	}
	details := fmt.Sprintf("Exported review data in %s format.", strings.ToUpper(format))
	digest := sha256.Sum256([]byte(rev.ID.String()))
	return newAuditEvent(rev.ID, actor, ActionExport, details, hex.EncodeToString(digest[:])[:16])
}

func newExtractEvent(reviewID uuid.UUID, termCount int, executedHash string) AuditEvent {
	details := fmt.Sprintf("Extracted %d key terms from executed agreement.", termCount)
	return newAuditEvent(reviewID, ActorEngine, ActionExtract, details, hashPrefix(executedHash))
}

func newValidateEvent(reviewID uuid.UUID, termSheetFileName string, issueCount int, termSheetHash string) AuditEvent {
	details := fmt.Sprintf("Validated against %s. Found %d issues.", termSheetFileName, issueCount)
	return newAuditEvent(reviewID, ActorEngine, ActionValidate, details, hashPrefix(termSheetHash))
}

// hashPrefix shortens a document digest for audit display.
func hashPrefix(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
