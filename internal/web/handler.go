// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docconform/internal/document"
	"docconform/internal/reconcile"
	"docconform/internal/report"
	"docconform/internal/review"
	"docconform/internal/store"
	"docconform/internal/terms"
)

// Handler wires the review API endpoints to the store and the engine.
type Handler struct {
	store     *store.Store
	engine    *review.Engine
	reader    *document.Reader
	extractor *terms.Extractor
	logger    *slog.Logger
	metrics   *Metrics

	uploadDir      string
	maxUploadBytes int64
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Store       *store.Store
	Engine      *review.Engine
	Reader      *document.Reader    // used by the verify endpoint
	Extractor   *terms.Extractor    // used by the verify endpoint
	Logger      *slog.Logger
	Metrics     *Metrics
	UploadDir   string
	MaxUploadMB int
}

// NewHandler constructs the review API handler.
func NewHandler(opts HandlerOptions) *Handler {
	maxUpload := int64(opts.MaxUploadMB)
	if maxUpload <= 0 {
		maxUpload = 32
	}
	return &Handler{
		store:          opts.Store,
		engine:         opts.Engine,
		reader:         opts.Reader,
		extractor:      opts.Extractor,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: maxUpload << 20,
	}
}

// Register mounts the API endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/reviews", h.handleCreateReview)
		r.Get("/reviews", h.handleListReviews)
		r.Get("/reviews/{id}", h.handleGetReview)
		r.Post("/reviews/{id}/process", h.handleProcessReview)
		r.Get("/reviews/{id}/terms", h.handleListTerms)
		r.Get("/reviews/{id}/issues", h.handleListIssues)
		r.Get("/reviews/{id}/audit", h.handleListAudit)
		r.Get("/reviews/{id}/export", h.handleExport)
		r.Post("/verify", h.handleVerify)
		r.Get("/formats", h.handleListFormats)
	})
	r.Get("/health", h.handleHealth)
}

// actor returns the caller identity for audit attribution. The API has
// no authentication layer; callers pass X-Actor and the default matches
// the engine's system actor.
func actor(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get("X-Actor")); actor != "" {
		return actor
	}
	return review.ActorSystemUser
}

func (h *Handler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart upload: %v", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	executedFile, executedHeader, err := r.FormFile("executed")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "executed agreement file is required (field 'executed')")
		return
	}
	defer executedFile.Close()

	termSheetName := ""
	var termSheetFile multipart.File
	var termSheetHeader *multipart.FileHeader
	if file, header, err := r.FormFile("term_sheet"); err == nil {
		termSheetFile = file
		termSheetHeader = header
		termSheetName = sanitizeFilename(header.Filename)
		defer file.Close()
	}

	rev := review.NewReview(sanitizeFilename(executedHeader.Filename), termSheetName)

	dir := filepath.Join(h.uploadDir, rev.ID.String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		h.serverError(w, "create upload directory", err)
		return
	}

	if rev.ExecutedFilePath, err = saveUpload(dir, rev.ExecutedFileName, executedFile); err != nil {
		h.serverError(w, "save executed agreement", err)
		return
	}
	if rev.ExecutedFileHash, err = document.ComputeSHA256(rev.ExecutedFilePath); err != nil {
		h.serverError(w, "hash executed agreement", err)
		return
	}
	if termSheetFile != nil {
		if rev.TermSheetFilePath, err = saveUpload(dir, sanitizeFilename(termSheetHeader.Filename), termSheetFile); err != nil {
			h.serverError(w, "save term sheet", err)
			return
		}
		if rev.TermSheetFileHash, err = document.ComputeSHA256(rev.TermSheetFilePath); err != nil {
			h.serverError(w, "hash term sheet", err)
			return
		}
	}

	if err := h.store.CreateReview(ctx, rev); err != nil {
		h.serverError(w, "create review", err)
		return
	}
	if err := h.store.AppendAudit(ctx, review.NewUploadEvent(rev, actor(r))); err != nil {
		h.serverError(w, "record upload", err)
		return
	}

	h.logger.Info("review created",
		"review_id", rev.ID,
		"executed_file", rev.ExecutedFileName,
		"term_sheet", rev.TermSheetFileName)
	h.writeJSON(w, http.StatusCreated, rev)
}

func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.store.ListReviews(r.Context())
	if err != nil {
		h.serverError(w, "list reviews", err)
		return
	}

	type summary struct {
		review.Review
		IssueCount int `json:"issue_count"`
	}
	out := make([]summary, 0, len(reviews))
	for _, rev := range reviews {
		out = append(out, summary{Review: rev.Review, IssueCount: rev.IssueCount})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"reviews": out})
}

func (h *Handler) handleGetReview(w http.ResponseWriter, r *http.Request) {
	rev, ok := h.loadReview(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, rev)
}

func (h *Handler) handleProcessReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rev, ok := h.loadReview(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.engine.Process(ctx, rev)
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			h.writeError(w, http.StatusConflict, "review has already been processed")
			return
		}
		// Process left the review in FAILED state; persist that so the
		// lifecycle terminates visibly instead of stranding PROCESSING.
		if updateErr := h.store.UpdateReview(ctx, rev); updateErr != nil {
			h.logger.Error("failed to persist failed review", "review_id", rev.ID, "error", updateErr)
		}
		h.metrics.ObserveProcess("failed", time.Since(start))
		h.logger.Error("review processing failed", "review_id", rev.ID, "error", err)
		h.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("processing failed: %v", err))
		return
	}

	if err := h.store.SaveResult(ctx, rev, result); err != nil {
		h.serverError(w, "save result", err)
		return
	}

	h.metrics.ObserveProcess("complete", time.Since(start))
	for severity, count := range reconcile.CountBySeverity(result.Issues) {
		h.metrics.AddIssues(string(severity), count)
	}

	h.logger.Info("review processed",
		"review_id", rev.ID,
		"executed_terms", len(result.ExecutedTerms),
		"approved_terms", len(result.ApprovedTerms),
		"issues", len(result.Issues),
		"duration_ms", time.Since(start).Milliseconds())

	h.writeJSON(w, http.StatusOK, map[string]any{
		"review":         rev,
		"executed_terms": len(result.ExecutedTerms),
		"approved_terms": len(result.ApprovedTerms),
		"issues":         len(result.Issues),
	})
}

func (h *Handler) handleListTerms(w http.ResponseWriter, r *http.Request) {
	rev, ok := h.loadReview(w, r)
	if !ok {
		return
	}
	stored, err := h.store.ListTerms(r.Context(), rev.ID)
	if err != nil {
		h.serverError(w, "list terms", err)
		return
	}

	type termRecord struct {
		terms.Term
		IsMatch bool `json:"is_match"`
	}
	out := make([]termRecord, 0, len(stored))
	for _, t := range stored {
		out = append(out, termRecord{Term: t.Term, IsMatch: t.IsMatch})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"terms": out})
}

func (h *Handler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	rev, ok := h.loadReview(w, r)
	if !ok {
		return
	}
	stored, err := h.store.ListIssues(r.Context(), rev.ID)
	if err != nil {
		h.serverError(w, "list issues", err)
		return
	}

	issues := make([]reconcile.Issue, 0, len(stored))
	for _, issue := range stored {
		issues = append(issues, issue.Issue)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	rev, ok := h.loadReview(w, r)
	if !ok {
		return
	}
	events, err := h.store.ListAudit(r.Context(), rev.ID)
	if err != nil {
		h.serverError(w, "list audit events", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"audit": events})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rev, ok := h.loadReview(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if _, exists := report.Get(format); !exists {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported format '%s'. Available formats: %s", format, strings.Join(report.List(), ", ")))
		return
	}

	data, err := h.exportData(r, rev)
	if err != nil {
		h.serverError(w, "assemble export", err)
		return
	}

	options := report.Options{
		NoColor:      true,
		ShowEvidence: true,
	}
	if levels := r.URL.Query().Get("severity"); levels != "" {
		options.SeverityFilter = report.ParseSeverityLevels(levels)
	}

	content, mimeType, filename, err := report.ExportForWeb(format, data, options)
	if err != nil {
		h.serverError(w, "render export", err)
		return
	}

	if err := h.store.AppendAudit(ctx, review.NewExportEvent(rev, actor(r), format)); err != nil {
		h.serverError(w, "record export", err)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, content)
}

// exportData reassembles formatter input from stored rows.
func (h *Handler) exportData(r *http.Request, rev *review.Review) (report.Data, error) {
	ctx := r.Context()

	storedTerms, err := h.store.ListTerms(ctx, rev.ID)
	if err != nil {
		return report.Data{}, err
	}
	storedIssues, err := h.store.ListIssues(ctx, rev.ID)
	if err != nil {
		return report.Data{}, err
	}
	audit, err := h.store.ListAudit(ctx, rev.ID)
	if err != nil {
		return report.Data{}, err
	}

	data := report.Data{
		Review:      rev,
		TermMatches: make(map[string]bool),
		Audit:       audit,
	}
	for _, t := range storedTerms {
		switch t.Source {
		case terms.SourceExecuted:
			data.ExecutedTerms = append(data.ExecutedTerms, t.Term)
			data.TermMatches[t.Key] = t.IsMatch
		default:
			data.ApprovedTerms = append(data.ApprovedTerms, t.Term)
		}
	}
	for _, issue := range storedIssues {
		data.Issues = append(data.Issues, issue.Issue)
	}
	data.Grid = reconcile.BuildGrid(data.ApprovedTerms, data.ExecutedTerms)
	return data, nil
}

// handleVerify is the targeted evidence re-verification endpoint: one
// document, one term key, optional expected value.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart upload: %v", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	key := strings.TrimSpace(r.FormValue("key"))
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "term key is required (field 'key')")
		return
	}
	expected := strings.TrimSpace(r.FormValue("expected"))

	file, header, err := r.FormFile("document")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document file is required (field 'document')")
		return
	}
	defer file.Close()

	tmpDir, err := os.MkdirTemp("", "docconform-verify-")
	if err != nil {
		h.serverError(w, "create temp directory", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	path, err := saveUpload(tmpDir, sanitizeFilename(header.Filename), file)
	if err != nil {
		h.serverError(w, "save document", err)
		return
	}

	doc, err := h.reader.Read(ctx, path)
	if err != nil {
		if errors.Is(err, document.ErrNoTextExtracted) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.serverError(w, "read document", err)
		return
	}

	pages := make([]terms.Page, len(doc.Pages))
	for i, p := range doc.Pages {
		pages[i] = terms.Page{Number: p.PageNumber, Text: p.Text}
	}

	response := map[string]any{
		"key":   key,
		"found": false,
	}
	if expected != "" {
		response["expected"] = expected
	}
	if term := h.extractor.VerifyTerm(pages, key); term != nil {
		response["found"] = true
		response["term"] = term
		if expected != "" {
			response["matches_expected"] = strings.EqualFold(strings.TrimSpace(term.Value), expected)
		}
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleListFormats(w http.ResponseWriter, r *http.Request) {
	type formatInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Extension   string `json:"extension"`
		MimeType    string `json:"mime_type"`
	}
	formats := make([]formatInfo, 0)
	for _, info := range report.GetSupportedFormats() {
		formats = append(formats, formatInfo{
			Name:        info.Name,
			Description: info.Description,
			Extension:   info.Extension,
			MimeType:    info.MimeType,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"formats": formats})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.store.HealthCheck(r.Context(), 2*time.Second); err != nil {
		h.logger.Error("health check failed", "error", err)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]string{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// loadReview parses the id URL parameter and fetches the review,
// writing the error response itself when either step fails.
func (h *Handler) loadReview(w http.ResponseWriter, r *http.Request) (*review.Review, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid review id")
		return nil, false
	}
	rev, err := h.store.GetReview(r.Context(), id)
	if err != nil {
		if errors.Is(err, review.ErrReviewNotFound) {
			h.writeError(w, http.StatusNotFound, "review not found")
			return nil, false
		}
		h.serverError(w, "load review", err)
		return nil, false
	}
	return rev, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// serverError logs the underlying error and returns an opaque 500; the
// detail stays in the server log rather than the response body.
func (h *Handler) serverError(w http.ResponseWriter, operation string, err error) {
	h.logger.Error("request failed", "operation", operation, "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

// sanitizeFilename strips any path components from an uploaded
// filename. Uploads land in per-review directories under our control.
func sanitizeFilename(name string) string {
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "upload"
	}
	return name
}

func saveUpload(dir, name string, src io.Reader) (string, error) {
	path := filepath.Join(dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}
