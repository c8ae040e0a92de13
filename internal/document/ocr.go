//go:build ocr

// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// ErrOCRNotEnabled is returned when OCR is requested but support was not
// compiled in. This build has OCR enabled, so only explicit misuse sees it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// OCREngine wraps Tesseract for page image recognition. A single engine
// serializes recognition calls; the underlying client is not safe for
// concurrent use.
type OCREngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewOCREngine creates a Tesseract-backed engine. Requires the Tesseract
// runtime to be installed on the host.
func NewOCREngine(language string) (*OCREngine, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR language %q: %w", language, err)
		}
	}
	return &OCREngine{client: client}, nil
}

// RecognizeImage performs OCR on image data (PNG, TIFF, JPEG, etc.).
// Returns the recognized text with leading/trailing whitespace trimmed.
func (e *OCREngine) RecognizeImage(imageData []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// Close releases OCR resources.
func (e *OCREngine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
