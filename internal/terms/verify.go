// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package terms

// VerifyTerm re-runs extraction over the given pages and returns the term
// found for key, or nil when the catalog finds no evidence for it. Used
// for spot cross-checks of individual terms against a document.
func (e *Extractor) VerifyTerm(pages []Page, key string) *Term {
	results := e.Extract(pages, SourceVerification)
	for i := range results {
		if results[i].Key == key {
			return &results[i]
		}
	}
	return nil
}
