// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package store persists reviews, their extracted terms, validation
// issues and audit trail in SQLite. Writes retry on busy errors; the
// driver's busy_timeout pragma absorbs most contention first.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"docconform/internal/logging"
	"docconform/internal/reconcile"
	"docconform/internal/resilience"
	"docconform/internal/review"
	"docconform/internal/terms"
)

// timeLayout keeps trailing zeros so stored timestamps sort
// lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	borrower_name TEXT NOT NULL DEFAULT '',
	facility_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	executed_file_name TEXT NOT NULL,
	executed_file_path TEXT NOT NULL DEFAULT '',
	executed_file_hash TEXT NOT NULL DEFAULT '',
	term_sheet_file_name TEXT NOT NULL DEFAULT '',
	term_sheet_file_path TEXT NOT NULL DEFAULT '',
	term_sheet_file_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS terms (
	id TEXT PRIMARY KEY,
	review_id TEXT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	key TEXT NOT NULL,
	label TEXT NOT NULL,
	value TEXT NOT NULL,
	raw_value TEXT NOT NULL DEFAULT '',
	normalized INTEGER NOT NULL DEFAULT 0,
	page INTEGER NOT NULL DEFAULT 0,
	evidence_text TEXT NOT NULL DEFAULT '',
	evidence_location TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	is_match INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_terms_review ON terms(review_id);

CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	review_id TEXT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	severity TEXT NOT NULL,
	code TEXT NOT NULL,
	message TEXT NOT NULL,
	related_term_key TEXT NOT NULL DEFAULT '',
	related_term_label TEXT NOT NULL DEFAULT '',
	evidence TEXT NOT NULL DEFAULT '',
	approved_evidence TEXT NOT NULL DEFAULT '',
	executed_evidence TEXT NOT NULL DEFAULT '',
	regulation_impact TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_issues_review ON issues(review_id);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	review_id TEXT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	hash TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_review ON audit_events(review_id);
`

// Options configures Open.
type Options struct {
	Path          string
	BusyTimeoutMS int // defaults to 5000
	Logger        *slog.Logger
}

// Store is a SQLite-backed review store.
type Store struct {
	db     *sql.DB
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// ReviewSummary is a review row with its issue count, as shown in list
// views.
type ReviewSummary struct {
	review.Review
	IssueCount int
}

// StoredTerm is a persisted term row. IsMatch records whether the value
// agreed with the approved side at processing time.
type StoredTerm struct {
	ID       uuid.UUID
	ReviewID uuid.UUID
	terms.Term
	IsMatch bool
}

// StoredIssue is a persisted issue row.
type StoredIssue struct {
	ID       uuid.UUID
	ReviewID uuid.UUID
	reconcile.Issue
}

// Open opens (creating if needed) the review database at opts.Path.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("store path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	busy := opts.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", opts.Path, busy)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Debug("store opened", "path", opts.Path)
	return &Store{
		db:     db,
		retry:  resilience.StoreRetryConfig(),
		logger: logger,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database within the given timeout. The web
// health endpoint calls this so a wedged database file surfaces there.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store health check: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return resilience.RetryWithBackoff(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// CreateReview inserts a new review row.
func (s *Store) CreateReview(ctx context.Context, rev *review.Review) error {
	err := s.exec(ctx, `
		INSERT INTO reviews (id, status, borrower_name, facility_name, created_at, updated_at,
			executed_file_name, executed_file_path, executed_file_hash,
			term_sheet_file_name, term_sheet_file_path, term_sheet_file_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rev.ID.String(), string(rev.Status), rev.BorrowerName, rev.FacilityName,
		formatTime(rev.CreatedAt), formatTime(rev.UpdatedAt),
		rev.ExecutedFileName, rev.ExecutedFilePath, rev.ExecutedFileHash,
		rev.TermSheetFileName, rev.TermSheetFilePath, rev.TermSheetFileHash)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// UpdateReview rewrites a review's mutable fields.
func (s *Store) UpdateReview(ctx context.Context, rev *review.Review) error {
	err := resilience.RetryWithBackoff(ctx, s.retry, func(ctx context.Context) error {
		return updateReview(ctx, s.db, rev)
	})
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

func updateReview(ctx context.Context, db execer, rev *review.Review) error {
	res, err := db.ExecContext(ctx, `
		UPDATE reviews SET status = ?, borrower_name = ?, facility_name = ?, updated_at = ?,
			executed_file_hash = ?, term_sheet_file_hash = ?
		WHERE id = ?`,
		string(rev.Status), rev.BorrowerName, rev.FacilityName, formatTime(rev.UpdatedAt),
		rev.ExecutedFileHash, rev.TermSheetFileHash, rev.ID.String())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return review.ErrReviewNotFound
	}
	return nil
}

// GetReview loads one review by ID.
func (s *Store) GetReview(ctx context.Context, id uuid.UUID) (*review.Review, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, borrower_name, facility_name, created_at, updated_at,
			executed_file_name, executed_file_path, executed_file_hash,
			term_sheet_file_name, term_sheet_file_path, term_sheet_file_hash
		FROM reviews WHERE id = ?`, id.String())
	rev, err := scanReview(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, review.ErrReviewNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rev, nil
}

// ListReviews returns all reviews newest first, each with its issue
// count.
func (s *Store) ListReviews(ctx context.Context) ([]ReviewSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.status, r.borrower_name, r.facility_name, r.created_at, r.updated_at,
			r.executed_file_name, r.executed_file_path, r.executed_file_hash,
			r.term_sheet_file_name, r.term_sheet_file_path, r.term_sheet_file_hash,
			(SELECT COUNT(*) FROM issues i WHERE i.review_id = r.id) AS issue_count
		FROM reviews r
		ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var summaries []ReviewSummary
	for rows.Next() {
		var rec reviewRecord
		var issueCount int
		if err := rows.Scan(&rec.id, &rec.status, &rec.borrowerName, &rec.facilityName,
			&rec.createdAt, &rec.updatedAt,
			&rec.executedFileName, &rec.executedFilePath, &rec.executedFileHash,
			&rec.termSheetFileName, &rec.termSheetFilePath, &rec.termSheetFileHash,
			&issueCount); err != nil {
			return nil, fmt.Errorf("list reviews: %w", err)
		}
		rev, err := rec.toReview()
		if err != nil {
			return nil, fmt.Errorf("list reviews: %w", err)
		}
		summaries = append(summaries, ReviewSummary{Review: *rev, IssueCount: issueCount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return summaries, nil
}

// SaveResult persists a processing run: the review's updated fields,
// its terms, issues and the run's audit events. Prior terms, issues and
// engine audit events are replaced so reprocessing never duplicates
// rows; upload and export events are kept.
func (s *Store) SaveResult(ctx context.Context, rev *review.Review, result *review.Result) error {
	err := resilience.RetryWithBackoff(ctx, s.retry, func(ctx context.Context) error {
		return s.saveResultOnce(ctx, rev, result)
	})
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *Store) saveResultOnce(ctx context.Context, rev *review.Review, result *review.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := updateReview(ctx, tx, rev); err != nil {
		return err
	}

	reviewID := rev.ID.String()
	if _, err := tx.ExecContext(ctx, `DELETE FROM terms WHERE review_id = ?`, reviewID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE review_id = ?`, reviewID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM audit_events WHERE review_id = ? AND action IN (?, ?)`,
		reviewID, string(review.ActionExtract), string(review.ActionValidate)); err != nil {
		return err
	}

	for _, t := range result.Terms() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO terms (id, review_id, source, key, label, value, raw_value, normalized,
				page, evidence_text, evidence_location, confidence, is_match)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), reviewID, string(t.Source), t.Key, t.Label, t.Value,
			t.RawValue, t.Normalized, t.Page, t.EvidenceText, t.EvidenceLocation,
			t.Confidence, result.TermIsMatch(t)); err != nil {
			return err
		}
	}

	for _, issue := range result.Issues {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO issues (id, review_id, severity, code, message, related_term_key,
				related_term_label, evidence, approved_evidence, executed_evidence, regulation_impact)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), reviewID, string(issue.Severity), string(issue.Code),
			issue.Message, issue.RelatedTermKey, issue.RelatedTermLabel,
			issue.Evidence, issue.ApprovedEvidence, issue.ExecutedEvidence,
			issue.RegulationImpact); err != nil {
			return err
		}
	}

	for _, event := range result.Audit {
		if err := insertAudit(ctx, tx, event); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AppendAudit records one audit event.
func (s *Store) AppendAudit(ctx context.Context, event review.AuditEvent) error {
	err := resilience.RetryWithBackoff(ctx, s.retry, func(ctx context.Context) error {
		return insertAudit(ctx, s.db, event)
	})
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func insertAudit(ctx context.Context, db execer, event review.AuditEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_events (id, review_id, actor, action, timestamp, details, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID.String(), event.ReviewID.String(), event.Actor, string(event.Action),
		formatTime(event.Timestamp), event.Details, event.Hash)
	return err
}

// ListTerms returns a review's terms ordered by source then key, so
// approved terms come before executed ones.
func (s *Store) ListTerms(ctx context.Context, reviewID uuid.UUID) ([]StoredTerm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, review_id, source, key, label, value, raw_value, normalized,
			page, evidence_text, evidence_location, confidence, is_match
		FROM terms WHERE review_id = ?
		ORDER BY source, key`, reviewID.String())
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	var stored []StoredTerm
	for rows.Next() {
		var st StoredTerm
		var id, revID, source string
		if err := rows.Scan(&id, &revID, &source, &st.Key, &st.Label, &st.Value,
			&st.RawValue, &st.Normalized, &st.Page, &st.EvidenceText,
			&st.EvidenceLocation, &st.Confidence, &st.IsMatch); err != nil {
			return nil, fmt.Errorf("list terms: %w", err)
		}
		if st.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("list terms: %w", err)
		}
		if st.ReviewID, err = uuid.Parse(revID); err != nil {
			return nil, fmt.Errorf("list terms: %w", err)
		}
		st.Source = terms.Source(source)
		stored = append(stored, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return stored, nil
}

// ListIssues returns a review's issues most severe first, then by code.
func (s *Store) ListIssues(ctx context.Context, reviewID uuid.UUID) ([]StoredIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, review_id, severity, code, message, related_term_key, related_term_label,
			evidence, approved_evidence, executed_evidence, regulation_impact
		FROM issues WHERE review_id = ?
		ORDER BY CASE severity WHEN 'HIGH' THEN 3 WHEN 'WARN' THEN 2 WHEN 'INFO' THEN 1 ELSE 0 END DESC,
			code, related_term_key`, reviewID.String())
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var stored []StoredIssue
	for rows.Next() {
		var si StoredIssue
		var id, revID, severity, code string
		if err := rows.Scan(&id, &revID, &severity, &code, &si.Message,
			&si.RelatedTermKey, &si.RelatedTermLabel, &si.Evidence,
			&si.ApprovedEvidence, &si.ExecutedEvidence, &si.RegulationImpact); err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		if si.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		if si.ReviewID, err = uuid.Parse(revID); err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		si.Severity = reconcile.Severity(severity)
		si.Code = reconcile.Code(code)
		stored = append(stored, si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return stored, nil
}

// ListAudit returns a review's audit trail newest first.
func (s *Store) ListAudit(ctx context.Context, reviewID uuid.UUID) ([]review.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, review_id, actor, action, timestamp, details, hash
		FROM audit_events WHERE review_id = ?
		ORDER BY timestamp DESC, id`, reviewID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []review.AuditEvent
	for rows.Next() {
		var event review.AuditEvent
		var id, revID, action, stamp string
		if err := rows.Scan(&id, &revID, &event.Actor, &action, &stamp,
			&event.Details, &event.Hash); err != nil {
			return nil, fmt.Errorf("list audit events: %w", err)
		}
		if event.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("list audit events: %w", err)
		}
		if event.ReviewID, err = uuid.Parse(revID); err != nil {
			return nil, fmt.Errorf("list audit events: %w", err)
		}
		if event.Timestamp, err = parseTime(stamp); err != nil {
			return nil, fmt.Errorf("list audit events: %w", err)
		}
		event.Action = review.AuditAction(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// reviewRecord mirrors a reviews row before type conversion.
type reviewRecord struct {
	id, status                           string
	borrowerName, facilityName           string
	createdAt, updatedAt                 string
	executedFileName, executedFilePath   string
	executedFileHash                     string
	termSheetFileName, termSheetFilePath string
	termSheetFileHash                    string
}

func (rec *reviewRecord) toReview() (*review.Review, error) {
	id, err := uuid.Parse(rec.id)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(rec.createdAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(rec.updatedAt)
	if err != nil {
		return nil, err
	}
	return &review.Review{
		ID:                id,
		Status:            review.Status(rec.status),
		BorrowerName:      rec.borrowerName,
		FacilityName:      rec.facilityName,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
		ExecutedFileName:  rec.executedFileName,
		ExecutedFilePath:  rec.executedFilePath,
		ExecutedFileHash:  rec.executedFileHash,
		TermSheetFileName: rec.termSheetFileName,
		TermSheetFilePath: rec.termSheetFilePath,
		TermSheetFileHash: rec.termSheetFileHash,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*review.Review, error) {
	var rec reviewRecord
	if err := row.Scan(&rec.id, &rec.status, &rec.borrowerName, &rec.facilityName,
		&rec.createdAt, &rec.updatedAt,
		&rec.executedFileName, &rec.executedFilePath, &rec.executedFileHash,
		&rec.termSheetFileName, &rec.termSheetFilePath, &rec.termSheetFileHash); err != nil {
		return nil, err
	}
	return rec.toReview()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
