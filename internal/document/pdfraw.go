// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	objectPattern    = regexp.MustCompile(`(?s)(\d+)\s+0\s+obj(.*?)endobj`)
	streamPattern    = regexp.MustCompile(`(?s)stream\r?\n(.*?)endstream`)
	textBlockPattern = regexp.MustCompile(`(?s)BT(.*?)ET`)
	literalPattern   = regexp.MustCompile(`\(([^)]+)\)`)
	hexPattern       = regexp.MustCompile(`<([0-9A-Fa-f]+)>`)
)

// validatePDF checks structural validity before any extraction is attempted.
func validatePDF(path string) error {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("invalid PDF file: %w", err)
	}
	return nil
}

// pdfPageCount returns the page count reported by the document catalog.
func pdfPageCount(path string) (int, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	return ctx.PageCount, nil
}

// extractPDFRaw recovers text by parsing content streams directly. It is
// the fallback for PDFs whose text layer the primary extractor cannot
// read. Stream-to-page attribution is positional: content streams appear
// in page order in the files this tool sees, and a best-effort fallback
// beats no text at all.
func extractPDFRaw(path string) ([]PageRecord, error) {
	pageCount, err := pdfPageCount(path)
	if err != nil {
		return nil, err
	}
	if pageCount < 1 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	streamTexts := collectStreamTexts(data)

	pages := make([]PageRecord, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		text := ""
		if i-1 < len(streamTexts) {
			text = streamTexts[i-1]
		}
		// Surplus streams beyond the page count belong to the tail of the document
		if i == pageCount && len(streamTexts) > pageCount {
			extra := strings.Join(streamTexts[pageCount:], "\n")
			text = strings.TrimSpace(text + "\n" + extra)
		}
		text = strings.TrimSpace(cleanExtractedText(text))
		pages = append(pages, PageRecord{
			PageNumber:       i,
			Text:             text,
			ExtractionMethod: methodPDFRaw,
			HasContent:       text != "",
		})
	}
	return pages, nil
}

// collectStreamTexts walks every object stream in document order and
// returns the text recovered from each stream that contained any.
func collectStreamTexts(data []byte) []string {
	var texts []string

	for _, obj := range objectPattern.FindAllSubmatch(data, -1) {
		if len(obj) < 3 {
			continue
		}
		body := obj[2]

		stream := streamPattern.FindSubmatch(body)
		if len(stream) < 2 {
			continue
		}
		streamData := stream[1]

		// FlateDecode is the dominant filter; anything else is read as-is
		if bytes.Contains(body, []byte("FlateDecode")) {
			if decompressed := decompressZlib(streamData); decompressed != nil {
				streamData = decompressed
			}
		}

		text := extractTextOperators(streamData)
		if strings.TrimSpace(text) != "" {
			texts = append(texts, strings.TrimSpace(text))
		}
	}

	return texts
}

// extractTextOperators pulls string operands out of BT..ET text blocks.
// Both literal strings (text) Tj and hex strings <74657874> Tj are handled.
func extractTextOperators(data []byte) string {
	var result strings.Builder

	for _, block := range textBlockPattern.FindAllSubmatch(data, -1) {
		if len(block) < 2 {
			continue
		}

		for _, m := range literalPattern.FindAllSubmatch(block[1], -1) {
			if len(m) < 2 {
				continue
			}
			text := unescapePDFText(string(m[1]))
			if len(text) > 0 {
				result.WriteString(text)
				result.WriteString(" ")
			}
		}

		for _, m := range hexPattern.FindAllSubmatch(block[1], -1) {
			if len(m) < 2 {
				continue
			}
			text := hexToText(strings.ToLower(string(m[1])))
			if len(text) > 0 {
				result.WriteString(text)
				result.WriteString(" ")
			}
		}
	}

	return result.String()
}

func decompressZlib(data []byte) []byte {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil
	}
	return decompressed
}

func unescapePDFText(text string) string {
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.ReplaceAll(text, `\r`, "\n")
	text = strings.ReplaceAll(text, `\t`, "\t")
	text = strings.ReplaceAll(text, `\(`, "(")
	text = strings.ReplaceAll(text, `\)`, ")")
	text = strings.ReplaceAll(text, `\\`, "\\")
	return text
}

func hexToText(hexStr string) string {
	if len(hexStr)%2 != 0 {
		return ""
	}

	var result strings.Builder
	for i := 0; i < len(hexStr); i += 2 {
		var b byte
		if _, err := fmt.Sscanf(hexStr[i:i+2], "%02x", &b); err != nil {
			continue
		}
		if unicode.IsPrint(rune(b)) {
			result.WriteByte(b)
		}
	}
	return result.String()
}
