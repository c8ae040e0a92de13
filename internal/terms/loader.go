// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package terms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// catalogSchema validates rules files before they are compiled. Pattern
// syntax is checked separately at compile time.
const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["rules"],
  "additionalProperties": false,
  "properties": {
    "rules": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["key", "patterns"],
        "additionalProperties": false,
        "properties": {
          "key": {"type": "string", "pattern": "^[a-z][a-z0-9_]*$"},
          "label": {"type": "string"},
          "patterns": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
          "extract_group": {"type": "integer", "minimum": 0},
          "confidence_base": {"type": "number", "minimum": 0, "maximum": 1},
          "boolean_presence": {"type": "boolean"}
        }
      }
    }
  }
}`

type catalogFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Key             string   `yaml:"key"`
	Label           string   `yaml:"label"`
	Patterns        []string `yaml:"patterns"`
	ExtractGroup    int      `yaml:"extract_group"`
	ConfidenceBase  float64  `yaml:"confidence_base"`
	BooleanPresence bool     `yaml:"boolean_presence"`
}

// LoadCatalog reads a custom rule catalog from a YAML file. The loaded
// rules replace the default catalog entirely. Unset fields default the
// same way built-in rules do: label title-cased from the key, value in
// capture group 1, confidence base 0.85. All patterns match
// case-insensitively.
func LoadCatalog(path string) ([]Rule, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	if err := validateCatalogDocument(data); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules := make([]Rule, 0, len(file.Rules))
	seen := make(map[string]bool)
	for _, spec := range file.Rules {
		if seen[spec.Key] {
			return nil, fmt.Errorf("duplicate rule key %q in rules file", spec.Key)
		}
		seen[spec.Key] = true

		label := spec.Label
		if label == "" {
			label = titleFromKey(spec.Key)
		}
		group := spec.ExtractGroup
		if group == 0 {
			group = 1
		}
		base := spec.ConfidenceBase
		if base == 0 {
			base = 0.85
		}

		patterns := make([]*regexp.Regexp, 0, len(spec.Patterns))
		for _, p := range spec.Patterns {
			compiled, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern for rule %q: %w", spec.Key, err)
			}
			patterns = append(patterns, compiled)
		}

		rules = append(rules, Rule{
			Key:             spec.Key,
			Label:           label,
			Patterns:        patterns,
			ExtractGroup:    group,
			ConfidenceBase:  base,
			BooleanPresence: spec.BooleanPresence,
		})
	}

	return rules, nil
}

// validateCatalogDocument checks the YAML document against catalogSchema.
// The document is routed through JSON so the validator sees canonical types.
func validateCatalogDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("not valid YAML: %w", err)
	}

	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to canonicalize rules document: %w", err)
	}
	var v any
	if err := json.Unmarshal(jsonDoc, &v); err != nil {
		return fmt.Errorf("failed to canonicalize rules document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.json", bytes.NewReader([]byte(catalogSchema))); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules document does not match schema: %w", err)
	}
	return nil
}

// titleFromKey derives a display label from a snake_case key.
func titleFromKey(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
