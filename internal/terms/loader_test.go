// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package terms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalogFile(t, `rules:
  - key: guarantor_name
    patterns:
      - 'guarantor[:\s]+([A-Z][A-Za-z\s]+(?:Inc\.|LLC))'
  - key: governing_law
    label: Governing Law
    patterns:
      - 'governed\s+by\s+the\s+laws?\s+of\s+(?:the\s+)?(?:State\s+of\s+)?(\w+(?:\s\w+)?)'
    extract_group: 1
    confidence_base: 0.9
`)

	rules, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "guarantor_name", rules[0].Key)
	assert.Equal(t, "Guarantor Name", rules[0].Label)
	assert.Equal(t, 1, rules[0].ExtractGroup)
	assert.InDelta(t, 0.85, rules[0].ConfidenceBase, 1e-9)
	assert.False(t, rules[0].BooleanPresence)

	assert.Equal(t, "Governing Law", rules[1].Label)
	assert.InDelta(t, 0.9, rules[1].ConfidenceBase, 1e-9)
}

func TestLoadCatalog_CaseInsensitivePatterns(t *testing.T) {
	path := writeCatalogFile(t, `rules:
  - key: governing_law
    patterns:
      - 'governed\s+by\s+the\s+laws\s+of\s+(\w+)'
`)

	rules, err := LoadCatalog(path)
	require.NoError(t, err)

	e := NewExtractor(ExtractorOptions{Rules: rules})
	terms := e.Extract(singlePage("This Agreement shall be GOVERNED BY THE LAWS OF Delaware."), SourceExecuted)
	term := findTerm(terms, "governing_law")
	require.NotNil(t, term)
	assert.Equal(t, "Delaware", term.Value)
}

func TestLoadCatalog_BooleanPresence(t *testing.T) {
	path := writeCatalogFile(t, `rules:
  - key: jury_waiver_present
    patterns:
      - 'waives?\s+(?:any\s+)?right\s+to\s+(?:a\s+)?trial\s+by\s+jury'
    boolean_presence: true
`)

	rules, err := LoadCatalog(path)
	require.NoError(t, err)

	e := NewExtractor(ExtractorOptions{Rules: rules})
	terms := e.Extract(singlePage("Each party waives any right to trial by jury."), SourceExecuted)
	term := findTerm(terms, "jury_waiver_present")
	require.NotNil(t, term)
	assert.Equal(t, "Yes", term.Value)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadCatalog_NoRules(t *testing.T) {
	path := writeCatalogFile(t, `rules: []`)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalog_MissingPatterns(t *testing.T) {
	path := writeCatalogFile(t, `rules:
  - key: guarantor_name
`)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalog_BadKeyFormat(t *testing.T) {
	path := writeCatalogFile(t, `rules:
  - key: GuarantorName
    patterns:
      - 'guarantor'
`)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalog_UnknownField(t *testing.T) {
	path := writeCatalogFile(t, `rules:
  - key: guarantor_name
    patterns:
      - 'guarantor'
    severity: high
`)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalog_InvalidPattern(t *testing.T) {
	path := writeCatalogFile(t, `rules:
  - key: guarantor_name
    patterns:
      - 'guarantor[:\s+('
`)
	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guarantor_name")
}

func TestLoadCatalog_DuplicateKey(t *testing.T) {
	path := writeCatalogFile(t, `rules:
  - key: guarantor_name
    patterns:
      - 'guarantor'
  - key: guarantor_name
    patterns:
      - 'guaranteed\s+by'
`)
	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadCatalog_NotYAML(t *testing.T) {
	path := writeCatalogFile(t, `{{{`)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestTitleFromKey(t *testing.T) {
	assert.Equal(t, "Guarantor Name", titleFromKey("guarantor_name"))
	assert.Equal(t, "Currency", titleFromKey("currency"))
	assert.Equal(t, "Covenant Total Net Leverage", titleFromKey("covenant_total_net_leverage"))
}
