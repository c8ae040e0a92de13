// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package document turns uploaded agreement files into per-page text.
// PDFs go through a layered extraction chain (text layer, raw content
// streams, OCR); plain text and images are handled directly. Every page
// of the source document gets a PageRecord even when no text could be
// recovered, so downstream evidence locations stay stable.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrNoTextExtracted indicates that every extraction method failed for a document.
var ErrNoTextExtracted = errors.New("failed to extract text from document: no extraction method succeeded")

// Extraction method names recorded on PageRecord.
const (
	methodPDFText   = "pdftext"
	methodPDFRaw    = "pdfraw"
	methodOCR       = "ocr"
	methodPlaintext = "plaintext"
)

// PageRecord holds the extracted text of a single page.
type PageRecord struct {
	PageNumber       int    `json:"page_number"` // 1-based
	Text             string `json:"text"`
	ExtractionMethod string `json:"extraction_method"`
	HasContent       bool   `json:"has_content"`
}

// Document is the extraction result for one source file.
type Document struct {
	Filename string       `json:"filename"`
	SHA256   string       `json:"sha256"`
	Pages    []PageRecord `json:"pages"`
}

// Summary describes an extraction run for logging and audit purposes.
type Summary struct {
	Filename          string   `json:"filename"`
	SHA256            string   `json:"sha256"`
	PageCount         int      `json:"page_count"`
	PagesWithText     int      `json:"pages_with_text"`
	TotalCharacters   int      `json:"total_characters"`
	ExtractionMethods []string `json:"extraction_methods"`
}

// PagesWithText returns the number of pages that produced non-empty text.
func (d *Document) PagesWithText() int {
	n := 0
	for _, p := range d.Pages {
		if p.HasContent {
			n++
		}
	}
	return n
}

// TotalCharacters returns the combined length of all page texts.
func (d *Document) TotalCharacters() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Text)
	}
	return n
}

// Summary builds the audit summary for this document.
func (d *Document) Summary() Summary {
	methodSet := make(map[string]struct{})
	for _, p := range d.Pages {
		if p.ExtractionMethod != "" {
			methodSet[p.ExtractionMethod] = struct{}{}
		}
	}
	methods := make([]string, 0, len(methodSet))
	for m := range methodSet {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	return Summary{
		Filename:          d.Filename,
		SHA256:            d.SHA256,
		PageCount:         len(d.Pages),
		PagesWithText:     d.PagesWithText(),
		TotalCharacters:   d.TotalCharacters(),
		ExtractionMethods: methods,
	}
}

// ComputeSHA256 returns the hex-encoded SHA-256 digest of a file,
// reading it in 8 KiB chunks so large agreements don't load into memory.
func ComputeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 8192)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
