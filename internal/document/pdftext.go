// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

// extractPDFText extracts the text layer of a PDF page by page.
// Pages whose extraction fails degrade to empty records; the caller
// decides whether to run a fallback method for them.
func extractPDFText(path string) ([]PageRecord, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening PDF: %w", err)
	}
	defer f.Close()

	pageCount := r.NumPage()
	if pageCount < 1 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	texts := make([]string, pageCount+1)

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i := 1; i <= pageCount; i++ {
		pageNum := i
		g.Go(func() error {
			// The pdf library panics on some malformed content streams;
			// a broken page must not take down the whole document.
			defer func() { _ = recover() }()

			p := r.Page(pageNum)
			if p.V.IsNull() {
				return nil
			}
			text, err := extractPageTextByRows(p)
			if err != nil {
				return nil
			}
			texts[pageNum] = text
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]PageRecord, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		text := strings.TrimSpace(cleanExtractedText(texts[i]))
		pages = append(pages, PageRecord{
			PageNumber:       i,
			Text:             text,
			ExtractionMethod: methodPDFText,
			HasContent:       text != "",
		})
	}
	return pages, nil
}

// extractPageTextByRows extracts text using row-based positioning for better spacing
func extractPageTextByRows(p pdf.Page) (string, error) {
	// Try row-based extraction first (more accurate spacing)
	rows, err := p.GetTextByRow()
	if err != nil {
		// Fallback to simple text extraction if row-based fails
		return p.GetPlainText(nil)
	}

	// Sort rows by Y coordinate for proper reading order (top to bottom)
	sortedRows := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil && len(row.Content) > 0 {
			sortedRows = append(sortedRows, row)
		}
	}
	sort.Slice(sortedRows, func(i, j int) bool {
		return getAverageY(sortedRows[i].Content) < getAverageY(sortedRows[j].Content)
	})

	var buf bytes.Buffer
	for _, row := range sortedRows {
		rowText := reconstructRowText(row.Content)
		if strings.TrimSpace(rowText) != "" {
			buf.WriteString(rowText)
			buf.WriteString("\n")
		}
	}

	return buf.String(), nil
}

// getAverageY calculates the average Y coordinate for text elements in a row
func getAverageY(textElements []pdf.Text) float64 {
	if len(textElements) == 0 {
		return 0
	}

	var totalY float64
	for _, element := range textElements {
		totalY += element.Y
	}
	return totalY / float64(len(textElements))
}

// reconstructRowText reconstructs text from a row with proper spacing based on coordinates
func reconstructRowText(textElements []pdf.Text) string {
	if len(textElements) == 0 {
		return ""
	}

	// Sort elements by X coordinate for left-to-right reading order
	sortedElements := make([]pdf.Text, len(textElements))
	copy(sortedElements, textElements)
	sort.Slice(sortedElements, func(i, j int) bool {
		return sortedElements[i].X < sortedElements[j].X
	})

	var buf bytes.Buffer
	for i, element := range sortedElements {
		buf.WriteString(element.S)

		if i < len(sortedElements)-1 {
			nextElement := sortedElements[i+1]

			// Gap between the end of this element and the start of the next
			currentEnd := element.X + element.W
			gap := nextElement.X - currentEnd

			fontSize := element.FontSize
			if fontSize <= 0 {
				fontSize = 12
			}

			// If gap is more than 20% of font size, insert a space
			if gap > fontSize*0.2 {
				buf.WriteString(" ")
			}
		}
	}

	return buf.String()
}

// cleanExtractedText cleans page text while maintaining line structure.
// Terms like "Maturity Date: June 30, 2028" must stay on one line for
// the extraction rules to see them.
func cleanExtractedText(text string) string {
	lines := strings.Split(text, "\n")
	var cleanedLines []string

	for _, line := range lines {
		line = strings.ReplaceAll(line, "\t", " ")
		for strings.Contains(line, "  ") {
			line = strings.ReplaceAll(line, "  ", " ")
		}
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	return strings.Join(cleanedLines, "\n")
}

// textLooksValid performs basic sanity checks on extracted text. Garbled
// output from a damaged text layer should trigger the raw fallback instead
// of flowing into term extraction.
func textLooksValid(text string) bool {
	if len(text) == 0 {
		return false
	}

	// Count printable vs non-printable characters
	printableCount := 0
	for _, r := range text {
		if (r >= 32 && r <= 126) || r == '\n' || r == '\r' || r == '\t' {
			printableCount++
		}
	}
	if float64(printableCount)/float64(len(text)) < 0.8 {
		return false
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}

	totalWordLength := 0
	for _, word := range words {
		totalWordLength += len(word)
	}
	avgWordLength := float64(totalWordLength) / float64(len(words))

	// Average word length outside 2..15 usually means a corrupted text layer
	return avgWordLength >= 2 && avgWordLength <= 15
}
