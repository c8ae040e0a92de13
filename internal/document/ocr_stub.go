//go:build !ocr

// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// This is the stub OCR implementation used when the "ocr" build tag is
// not set. Recognition calls return ErrOCRNotEnabled. To enable OCR,
// rebuild with:
//
//	go build -tags ocr
//
// which requires the Tesseract runtime to be installed on the host.

package document

import "errors"

// ErrOCRNotEnabled is returned when OCR functions are called but OCR
// support was not compiled in. Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// OCREngine is a stub that rejects all recognition requests.
type OCREngine struct{}

// NewOCREngine returns an error indicating OCR support is not enabled.
func NewOCREngine(language string) (*OCREngine, error) {
	return nil, ErrOCRNotEnabled
}

// RecognizeImage returns an error indicating OCR support is not enabled.
func (e *OCREngine) RecognizeImage(imageData []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

// Close is a no-op for the stub engine. Safe to call on nil.
func (e *OCREngine) Close() error {
	return nil
}
