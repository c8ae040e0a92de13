// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"docconform/internal/document"
	"docconform/internal/logging"
	"docconform/internal/normalize"
	"docconform/internal/reconcile"
	"docconform/internal/terms"
)

// Result is the outcome of one processing run.
type Result struct {
	Executed      document.Summary
	Approved      *document.Summary // nil when no approved summary was given
	ExecutedTerms []terms.Term
	ApprovedTerms []terms.Term
	Issues        []reconcile.Issue
	Grid          []reconcile.GridRow
	BorrowerName  string
	FacilityName  string
	Audit         []AuditEvent // populated by Process, empty for bare runs

	matches map[string]bool
}

// TermIsMatch reports whether a term's value agrees across documents.
// Approved terms and executed terms without an approved counterpart
// count as matching.
func (r *Result) TermIsMatch(t terms.Term) bool {
	if t.Source != terms.SourceExecuted {
		return true
	}
	if match, ok := r.matches[t.Key]; ok {
		return match
	}
	return true
}

// Terms returns approved then executed terms as one slice.
func (r *Result) Terms() []terms.Term {
	all := make([]terms.Term, 0, len(r.ApprovedTerms)+len(r.ExecutedTerms))
	all = append(all, r.ApprovedTerms...)
	all = append(all, r.ExecutedTerms...)
	return all
}

// EngineOptions configures an Engine. Nil components get defaults.
type EngineOptions struct {
	Reader    *document.Reader
	Extractor *terms.Extractor
	Validator *reconcile.Validator
	CacheTTL  time.Duration // 0 disables extraction caching
	Logger    *slog.Logger
}

// Engine runs the extraction and validation pipeline over a review's
// documents. Extraction results are cached by document digest so
// repeat runs of unchanged files skip re-parsing.
type Engine struct {
	reader    *document.Reader
	extractor *terms.Extractor
	norm      *normalize.Normalizer
	validator *reconcile.Validator
	cache     *gocache.Cache
	logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	reader := opts.Reader
	if reader == nil {
		reader = document.NewReader(document.ReaderOptions{Logger: logger})
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = terms.NewExtractor(terms.ExtractorOptions{Logger: logger})
	}
	validator := opts.Validator
	if validator == nil {
		validator = reconcile.NewValidator(reconcile.ValidatorOptions{Logger: logger})
	}
	var extractionCache *gocache.Cache
	if opts.CacheTTL > 0 {
		extractionCache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return &Engine{
		reader:    reader,
		extractor: extractor,
		norm:      normalize.New(logger),
		validator: validator,
		cache:     extractionCache,
		logger:    logger,
	}
}

// Reader exposes the engine's document reader for callers that need to
// read documents outside a full reconciliation run.
func (e *Engine) Reader() *document.Reader {
	return e.reader
}

// Extractor exposes the engine's term extractor.
func (e *Engine) Extractor() *terms.Extractor {
	return e.extractor
}

// Run reads and reconciles the two documents. approvedPath may be
// empty; terms are still extracted from the executed agreement, but no
// issues are produced without an approved summary to compare against.
func (e *Engine) Run(ctx context.Context, approvedPath, executedPath string) (*Result, error) {
	if executedPath == "" {
		return nil, errors.New("executed agreement path is required")
	}

	start := time.Now()

	var approvedEntry, executedEntry *cacheEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		executedEntry, err = e.load(gctx, executedPath, terms.SourceExecuted)
		return err
	})
	if approvedPath != "" {
		g.Go(func() error {
			var err error
			approvedEntry, err = e.load(gctx, approvedPath, terms.SourceApproved)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Executed:      executedEntry.summary,
		ExecutedTerms: executedEntry.terms,
		BorrowerName:  executedEntry.borrower,
		FacilityName:  executedEntry.facility,
	}

	var approvedTerms []terms.Term
	if approvedEntry != nil {
		summary := approvedEntry.summary
		result.Approved = &summary
		result.ApprovedTerms = approvedEntry.terms
		approvedTerms = approvedEntry.terms
		result.Issues = e.validator.Validate(approvedTerms, executedEntry.terms)
	}

	result.Grid = reconcile.BuildGrid(approvedTerms, executedEntry.terms)

	approvedValues := make(map[string]string, len(approvedTerms))
	for _, t := range approvedTerms {
		approvedValues[t.Key] = t.Value
	}
	result.matches = make(map[string]bool, len(executedEntry.terms))
	for _, t := range executedEntry.terms {
		match := true
		if approvedValue, ok := approvedValues[t.Key]; ok {
			match = t.Value == approvedValue
		}
		result.matches[t.Key] = match
	}

	e.logger.Info("review run complete",
		"executed_terms", len(result.ExecutedTerms),
		"approved_terms", len(result.ApprovedTerms),
		"issues", len(result.Issues),
		"duration", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// Process runs a stored review end to end and records the audit events
// the run produces. Review fields are updated in place; persisting them
// is the caller's job.
func (e *Engine) Process(ctx context.Context, rev *Review) (*Result, error) {
	if rev.Status == StatusComplete {
		return nil, ErrAlreadyProcessed
	}

	rev.Status = StatusProcessing
	rev.UpdatedAt = time.Now().UTC()

	result, err := e.Run(ctx, rev.TermSheetFilePath, rev.ExecutedFilePath)
	if err != nil {
		rev.Status = StatusFailed
		rev.UpdatedAt = time.Now().UTC()
		return nil, fmt.Errorf("failed to process review %s: %w", rev.ID, err)
	}

	rev.ExecutedFileHash = result.Executed.SHA256
	if result.Approved != nil {
		rev.TermSheetFileHash = result.Approved.SHA256
	}
	rev.BorrowerName = result.BorrowerName
	rev.FacilityName = result.FacilityName

	result.Audit = append(result.Audit, newExtractEvent(rev.ID, len(result.ExecutedTerms), rev.ExecutedFileHash))
	if result.Approved != nil {
		result.Audit = append(result.Audit, newValidateEvent(rev.ID, rev.TermSheetFileName, len(result.Issues), rev.TermSheetFileHash))
	}

	rev.Status = StatusComplete
	rev.UpdatedAt = time.Now().UTC()
	return result, nil
}

// cacheEntry holds everything extraction produces for one document and
// source pairing.
type cacheEntry struct {
	summary  document.Summary
	terms    []terms.Term
	borrower string
	facility string
}

// load reads one document and extracts its normalized terms, consulting
// the cache first. Cache keys combine the file digest, the source role
// and the catalog fingerprint.
func (e *Engine) load(ctx context.Context, path string, source terms.Source) (*cacheEntry, error) {
	var key string
	if e.cache != nil {
		hash, err := document.ComputeSHA256(path)
		if err != nil {
			return nil, err
		}
		key = hash + "|" + string(source) + "|" + e.extractor.Fingerprint()
		if hit, ok := e.cache.Get(key); ok {
			entry := hit.(*cacheEntry)
			e.logger.Debug("extraction cache hit", "file", entry.summary.Filename, "source", string(source))
			return entry, nil
		}
	}

	doc, err := e.reader.Read(ctx, path)
	if err != nil {
		return nil, err
	}

	pages := make([]terms.Page, len(doc.Pages))
	for i, p := range doc.Pages {
		pages[i] = terms.Page{Number: p.PageNumber, Text: p.Text}
	}

	extracted := e.extractor.Extract(pages, source)
	e.norm.ApplyAll(extracted)

	entry := &cacheEntry{summary: doc.Summary(), terms: extracted}
	if source == terms.SourceExecuted {
		entry.borrower, entry.facility = documentInfo(e.extractor, pages)
	}

	if e.cache != nil {
		e.cache.Set(key, entry, gocache.DefaultExpiration)
	}
	return entry, nil
}

// documentInfo lifts display metadata from agreement text. Values stay
// raw; they label the review rather than feed the comparison.
func documentInfo(extractor *terms.Extractor, pages []terms.Page) (borrower, facility string) {
	for _, t := range extractor.Extract(pages, terms.SourceInfo) {
		switch {
		case t.Key == "borrower" && borrower == "":
			borrower = t.Value
		case t.Key == "facility_type" && facility == "":
			facility = t.Value
		}
	}
	return borrower, facility
}
