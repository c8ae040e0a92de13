// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"fmt"
	"os"
	"strings"
)

// extractPlaintext reads a text file as a single-page document. Term
// sheets and credit summaries often arrive as plain text exports.
func extractPlaintext(path string) ([]PageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	return []PageRecord{{
		PageNumber:       1,
		Text:             text,
		ExtractionMethod: methodPlaintext,
		HasContent:       text != "",
	}}, nil
}
