// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a text-handler logger writing to stderr. Debug level is
// enabled by the flag or the DOCCONFORM_DEBUG environment variable.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || os.Getenv("DOCCONFORM_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// Discard returns a logger that drops everything. Used by tests and by
// callers that have no logging destination.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
