// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"docconform/internal/logging"
	"docconform/internal/resilience"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/time/rate"
)

// TextRecognizer recognizes text in a page image. Implemented by OCREngine;
// tests substitute fakes.
type TextRecognizer interface {
	RecognizeImage(imageData []byte) (string, error)
	Close() error
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	OCR                  TextRecognizer // nil disables OCR
	OCRRequestsPerSecond float64
	OCRBurst             int
	MinTextLength        int // below this, extraction is logged as suspicious
	Logger               *slog.Logger
}

// Reader extracts per-page text from agreement files. For PDFs it runs a
// layered chain: the text layer first, raw content streams when that
// fails, and OCR for individual pages that stayed empty.
type Reader struct {
	ocr           TextRecognizer
	ocrLimiter    *rate.Limiter
	ocrBreaker    *resilience.Breaker
	minTextLength int
	logger        *slog.Logger
}

// NewReader creates a Reader.
func NewReader(opts ReaderOptions) *Reader {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	rps := opts.OCRRequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := opts.OCRBurst
	if burst <= 0 {
		burst = 2
	}
	minText := opts.MinTextLength
	if minText <= 0 {
		minText = 100
	}
	return &Reader{
		ocr:           opts.OCR,
		ocrLimiter:    rate.NewLimiter(rate.Limit(rps), burst),
		ocrBreaker:    resilience.NewBreaker(resilience.OCRBreakerConfig()),
		minTextLength: minText,
		logger:        logger,
	}
}

// Read extracts a document from path. The returned Document always has one
// PageRecord per source page; Read fails only when no method recovered any
// text at all.
func (r *Reader) Read(ctx context.Context, path string) (*Document, error) {
	hash, err := ComputeSHA256(path)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Filename: filepath.Base(path),
		SHA256:   hash,
	}

	ext := strings.ToLower(filepath.Ext(path))
	var pages []PageRecord
	switch ext {
	case ".pdf":
		pages, err = r.readPDF(ctx, path)
	case ".txt", ".md":
		pages, err = extractPlaintext(path)
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		pages, err = r.readImage(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, err
	}

	doc.Pages = pages
	if doc.PagesWithText() == 0 {
		return nil, ErrNoTextExtracted
	}

	if total := doc.TotalCharacters(); total < r.minTextLength {
		r.logger.Warn(fmt.Sprintf("Very little text extracted from %s (%d chars)", doc.Filename, total))
	}

	summary := doc.Summary()
	r.logger.Debug("document extracted",
		"file", summary.Filename,
		"pages", summary.PageCount,
		"pages_with_text", summary.PagesWithText,
		"chars", summary.TotalCharacters,
		"methods", strings.Join(summary.ExtractionMethods, ","))

	return doc, nil
}

// readPDF runs the PDF extraction chain.
func (r *Reader) readPDF(ctx context.Context, path string) ([]PageRecord, error) {
	// Structural validation is advisory. Slightly off-spec files are common
	// and the text-layer extractor can often still read them.
	if err := validatePDF(path); err != nil {
		r.logger.Warn("PDF validation failed, attempting extraction anyway", "file", filepath.Base(path), "error", err)
	}

	pages, primaryErr := extractPDFText(path)
	if primaryErr != nil || !pagesLookUsable(pages) {
		fallbackPages, fallbackErr := extractPDFRaw(path)
		switch {
		case fallbackErr == nil && anyContent(fallbackPages):
			if primaryErr != nil {
				r.logger.Debug("text layer unreadable, recovered from raw content streams", "file", filepath.Base(path))
			}
			pages = fallbackPages
		case primaryErr != nil && fallbackErr != nil:
			r.logger.Debug("all PDF extraction methods failed",
				"file", filepath.Base(path),
				"primary_error", primaryErr,
				"fallback_error", fallbackErr)
			return nil, ErrNoTextExtracted
		case primaryErr != nil:
			// Fallback parsed the file but found nothing; keep its page
			// structure so OCR has page numbers to work with.
			pages = fallbackPages
		}
	}

	if r.ocr != nil {
		pages = r.ocrEmptyPages(ctx, path, pages)
	}
	return pages, nil
}

// ocrEmptyPages runs OCR over pages that produced no text, replacing each
// rescued page's record in place.
func (r *Reader) ocrEmptyPages(ctx context.Context, path string, pages []PageRecord) []PageRecord {
	for i := range pages {
		if pages[i].HasContent {
			continue
		}

		text, err := r.ocrPDFPage(ctx, path, pages[i].PageNumber)
		if err != nil {
			if errors.Is(err, ErrOCRNotEnabled) || resilience.IsBreakerOpen(err) || ctx.Err() != nil {
				return pages
			}
			r.logger.Debug("OCR failed for page", "file", filepath.Base(path), "page", pages[i].PageNumber, "error", err)
			continue
		}
		if text != "" {
			pages[i].Text = text
			pages[i].ExtractionMethod = methodOCR
			pages[i].HasContent = true
		}
	}
	return pages
}

// ocrPDFPage extracts the embedded images of one PDF page and runs OCR
// over them. Scanned agreements store each page as a single raster image.
func (r *Reader) ocrPDFPage(ctx context.Context, path string, pageNum int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "docconform-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractImagesFile(path, tmpDir, []string{strconv.Itoa(pageNum)}, conf); err != nil {
		return "", fmt.Errorf("failed to extract page images: %w", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			continue
		}

		text, err := r.recognize(ctx, data)
		if err != nil {
			if errors.Is(err, ErrOCRNotEnabled) || resilience.IsBreakerOpen(err) {
				return "", err
			}
			r.logger.Debug("OCR failed for page image", "image", name, "error", err)
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// recognize runs one rate-limited, retried OCR call. A circuit breaker
// keeps a broken engine from charging the retry cost on every empty page.
func (r *Reader) recognize(ctx context.Context, imageData []byte) (string, error) {
	if err := r.ocrLimiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := r.ocrBreaker.Allow(); err != nil {
		return "", err
	}
	text, err := resilience.RetryWithResult(ctx, resilience.OCRRetryConfig(), func(ctx context.Context) (string, error) {
		return r.ocr.RecognizeImage(imageData)
	})
	r.ocrBreaker.Record(err)
	return text, err
}

// readImage treats an image file as a single scanned page. OCR is the
// only way to get text out, so a reader without OCR rejects images.
func (r *Reader) readImage(ctx context.Context, path string) ([]PageRecord, error) {
	if _, err := inspectImage(path, r.logger); err != nil {
		return nil, err
	}

	if r.ocr == nil {
		return nil, fmt.Errorf("cannot extract text from image %s: %w", filepath.Base(path), ErrOCRNotEnabled)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	text, err := r.recognize(ctx, data)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	return []PageRecord{{
		PageNumber:       1,
		Text:             text,
		ExtractionMethod: methodOCR,
		HasContent:       text != "",
	}}, nil
}

// pagesLookUsable reports whether the primary extraction produced text
// that is worth keeping.
func pagesLookUsable(pages []PageRecord) bool {
	if !anyContent(pages) {
		return false
	}
	var combined strings.Builder
	for _, p := range pages {
		combined.WriteString(p.Text)
		combined.WriteString("\n")
	}
	return textLooksValid(combined.String())
}

func anyContent(pages []PageRecord) bool {
	for _, p := range pages {
		if p.HasContent {
			return true
		}
	}
	return false
}
