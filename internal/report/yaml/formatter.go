// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package yaml

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"docconform/internal/report"
	"docconform/internal/report/shared"
)

// Formatter implements YAML output formatting.
type Formatter struct{}

// NewFormatter creates a new YAML formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "yaml"
}

func (f *Formatter) Description() string {
	return "YAML format output, structurally identical to the JSON format"
}

func (f *Formatter) FileExtension() string {
	return ".yaml"
}

func (f *Formatter) Format(data report.Data, options report.Options) (string, error) {
	// Same wire shape as the JSON formatter.
	response := shared.BuildReport(data, options)

	yamlData, err := yaml.Marshal(response)
	if err != nil {
		return "", fmt.Errorf("error formatting YAML: %w", err)
	}

	return string(yamlData), nil
}

// Register the formatter during package initialization.
func init() {
	report.Register(NewFormatter())
}
