// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecognizer returns canned OCR text.
type fakeRecognizer struct {
	text string
	err  error
}

func (f *fakeRecognizer) RecognizeImage(imageData []byte) (string, error) {
	return f.text, f.err
}

func (f *fakeRecognizer) Close() error { return nil }

// writeTestPNG creates a small white PNG on disk.
func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func TestComputeSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0600))

	hash, err := ComputeSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", hash)
}

func TestComputeSHA256_MissingFile(t *testing.T) {
	_, err := ComputeSHA256("/nonexistent/file.pdf")
	assert.Error(t, err)
}

func TestRead_Plaintext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.txt")
	content := "Borrower: Meridian Industrial Holdings Inc.\n" +
		"Facility Amount: USD 300,000,000\n" +
		"Maturity Date: June 30, 2028\n" +
		"Benchmark: Term SOFR plus Applicable Margin\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	reader := NewReader(ReaderOptions{})
	doc, err := reader.Read(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "summary.txt", doc.Filename)
	assert.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].PageNumber)
	assert.Equal(t, "plaintext", doc.Pages[0].ExtractionMethod)
	assert.True(t, doc.Pages[0].HasContent)
	assert.Contains(t, doc.Pages[0].Text, "Meridian Industrial Holdings")
	assert.NotEmpty(t, doc.SHA256)
}

func TestRead_EmptyTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n  \n"), 0600))

	reader := NewReader(ReaderOptions{})
	_, err := reader.Read(context.Background(), path)
	require.ErrorIs(t, err, ErrNoTextExtracted)
}

func TestRead_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agreement.docx")
	require.NoError(t, os.WriteFile(path, []byte("not really a docx"), 0600))

	reader := NewReader(ReaderOptions{})
	_, err := reader.Read(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestRead_ImageWithOCR(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir)

	reader := NewReader(ReaderOptions{
		OCR: &fakeRecognizer{text: "Maturity Date: June 30, 2028"},
	})
	doc, err := reader.Read(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "ocr", doc.Pages[0].ExtractionMethod)
	assert.Equal(t, "Maturity Date: June 30, 2028", doc.Pages[0].Text)
}

func TestRead_ImageWithoutOCR(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir)

	reader := NewReader(ReaderOptions{})
	_, err := reader.Read(context.Background(), path)
	require.ErrorIs(t, err, ErrOCRNotEnabled)
}

func TestDocumentSummary(t *testing.T) {
	doc := &Document{
		Filename: "executed.pdf",
		SHA256:   "abc123",
		Pages: []PageRecord{
			{PageNumber: 1, Text: "first page", ExtractionMethod: "pdftext", HasContent: true},
			{PageNumber: 2, Text: "", ExtractionMethod: "pdftext", HasContent: false},
			{PageNumber: 3, Text: "scanned page", ExtractionMethod: "ocr", HasContent: true},
		},
	}

	summary := doc.Summary()
	assert.Equal(t, "executed.pdf", summary.Filename)
	assert.Equal(t, 3, summary.PageCount)
	assert.Equal(t, 2, summary.PagesWithText)
	assert.Equal(t, len("first page")+len("scanned page"), summary.TotalCharacters)
	assert.Equal(t, []string{"ocr", "pdftext"}, summary.ExtractionMethods)
}

func TestCleanExtractedText(t *testing.T) {
	in := "  Maturity   Date:\tJune 30, 2028  \n\n\n  Applicable Margin: 225 bps  \n"
	out := cleanExtractedText(in)
	assert.Equal(t, "Maturity Date: June 30, 2028\nApplicable Margin: 225 bps", out)
}

func TestTextLooksValid(t *testing.T) {
	assert.True(t, textLooksValid("This revolving credit facility matures on June 30, 2028."))
	assert.False(t, textLooksValid(""))
	assert.False(t, textLooksValid("\x00\x01\x02\x03\x04\x05\x06\x07\x08\x0b"))

	// Endless unbroken byte runs point at a corrupted text layer
	assert.False(t, textLooksValid(strings.Repeat("x", 400)))
}

func TestReconstructRowText_SpacingByGap(t *testing.T) {
	elements := []pdf.Text{
		{S: "Maturity", X: 10, W: 40, FontSize: 10},
		{S: "Date:", X: 55, W: 25, FontSize: 10}, // gap of 5 > 20% font size
		{S: "June", X: 90, W: 20, FontSize: 10},
	}
	out := reconstructRowText(elements)
	assert.Equal(t, "Maturity Date: June", out)
}

func TestReconstructRowText_NoGapNoSpace(t *testing.T) {
	elements := []pdf.Text{
		{S: "SO", X: 10, W: 12, FontSize: 10},
		{S: "FR", X: 22, W: 12, FontSize: 10}, // contiguous glyph runs stay joined
	}
	out := reconstructRowText(elements)
	assert.Equal(t, "SOFR", out)
}

func TestReconstructRowText_SortsByX(t *testing.T) {
	elements := []pdf.Text{
		{S: "2028", X: 100, W: 20, FontSize: 10},
		{S: "June", X: 10, W: 20, FontSize: 10},
	}
	out := reconstructRowText(elements)
	assert.Equal(t, "June 2028", out)
}

func TestExtractTextOperators(t *testing.T) {
	stream := []byte("BT /F1 12 Tf (Aggregate Commitments:) Tj (USD 300,000,000) Tj ET")
	out := extractTextOperators(stream)
	assert.Contains(t, out, "Aggregate Commitments:")
	assert.Contains(t, out, "USD 300,000,000")
}

func TestExtractTextOperators_HexStrings(t *testing.T) {
	// "SOFR" in hex
	stream := []byte("BT <534f4652> Tj ET")
	out := extractTextOperators(stream)
	assert.Contains(t, out, "SOFR")
}

func TestExtractTextOperators_Escapes(t *testing.T) {
	stream := []byte(`BT (Term\nSOFR) Tj ET`)
	out := extractTextOperators(stream)
	assert.Contains(t, out, "Term\nSOFR")
}

func TestUnescapePDFText(t *testing.T) {
	assert.Equal(t, "(USD)", unescapePDFText(`\(USD\)`))
	assert.Equal(t, "line\nbreak", unescapePDFText(`line\nbreak`))
}

func TestHexToText(t *testing.T) {
	assert.Equal(t, "SOFR", hexToText("534f4652"))
	assert.Equal(t, "", hexToText("534")) // odd length
}
