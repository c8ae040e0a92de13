// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package review

import (
	"errors"
	"log/slog"
	"time"

	"docconform/internal/config"
	"docconform/internal/document"
	"docconform/internal/reconcile"
	"docconform/internal/terms"
)

// BuildEngine assembles an Engine from configuration. The CLI and the
// web server both go through here so the two surfaces run identical
// pipelines. catalog may be nil to use the default rule catalog.
func BuildEngine(cfg *config.Config, catalog []terms.Rule, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	var recognizer document.TextRecognizer
	if cfg.OCR.Enabled {
		engine, err := document.NewOCREngine(cfg.OCR.Language)
		if err != nil {
			if errors.Is(err, document.ErrOCRNotEnabled) {
				logger.Warn("OCR requested but not compiled in; image-only pages will stay empty",
					"hint", "rebuild with -tags ocr")
			} else {
				return nil, err
			}
		} else {
			recognizer = engine
		}
	}

	reader := document.NewReader(document.ReaderOptions{
		OCR:                  recognizer,
		OCRRequestsPerSecond: cfg.OCR.RequestsPerSecond,
		OCRBurst:             cfg.OCR.Burst,
		MinTextLength:        cfg.Extraction.MinTextLength,
		Logger:               logger,
	})

	extractor := terms.NewExtractor(terms.ExtractorOptions{
		Rules: catalog,
		Scoring: terms.Scoring{
			LongMatchBonus:     cfg.Extraction.LongMatchBonus,
			GroupAbsentPenalty: cfg.Extraction.GroupAbsentPenalty,
			ContextChars:       cfg.Extraction.ContextChars,
		},
		Logger: logger,
	})

	validator := reconcile.NewValidator(reconcile.ValidatorOptions{
		NumericTolerance: cfg.Comparison.NumericTolerance,
		Logger:           logger,
	})

	var cacheTTL time.Duration
	if cfg.Cache.Enabled && cfg.Cache.TTLMinutes > 0 {
		cacheTTL = time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	}

	return NewEngine(EngineOptions{
		Reader:    reader,
		Extractor: extractor,
		Validator: validator,
		CacheTTL:  cacheTTL,
		Logger:    logger,
	}), nil
}
