// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigOrDefault_NoFile(t *testing.T) {
	// With no config file, should return defaults without error
	cfg := LoadConfigOrDefault("")
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.Defaults.Format == "" {
		t.Error("expected default format to be set")
	}
}

func TestLoadConfigOrDefault_NonexistentFile(t *testing.T) {
	// A path that doesn't exist should fall back to defaults
	cfg := LoadConfigOrDefault("/nonexistent/path/config.yaml")
	if cfg == nil {
		t.Fatal("expected non-nil config (fallback to defaults)")
	}
}

func TestLoadConfigOrDefault_ValidFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
defaults:
  format: json
  severity: high
comparison:
  numeric_tolerance: 0.01
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := LoadConfigOrDefault(configPath)
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.Defaults.Format != "json" {
		t.Errorf("expected format=json, got %q", cfg.Defaults.Format)
	}
	if cfg.Defaults.Severity != "high" {
		t.Errorf("expected severity=high, got %q", cfg.Defaults.Severity)
	}
	if cfg.Comparison.NumericTolerance != 0.01 {
		t.Errorf("expected numeric_tolerance=0.01, got %g", cfg.Comparison.NumericTolerance)
	}
}

func TestLoadConfigOrDefault_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(configPath, []byte(":::invalid yaml:::"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Should fall back to defaults, not panic
	cfg := LoadConfigOrDefault(configPath)
	if cfg == nil {
		t.Fatal("expected non-nil config (fallback to defaults on parse error)")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Defaults.Format != "text" {
		t.Errorf("expected default format=text, got %q", cfg.Defaults.Format)
	}
	if cfg.Defaults.Severity != "all" {
		t.Errorf("expected default severity=all, got %q", cfg.Defaults.Severity)
	}
	if cfg.Extraction.ContextChars != 100 {
		t.Errorf("expected default context_chars=100, got %d", cfg.Extraction.ContextChars)
	}
	if cfg.Extraction.LongMatchBonus != 0.05 {
		t.Errorf("expected default long_match_bonus=0.05, got %g", cfg.Extraction.LongMatchBonus)
	}
	if cfg.Comparison.NumericTolerance != 0.001 {
		t.Errorf("expected default numeric_tolerance=0.001, got %g", cfg.Comparison.NumericTolerance)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache.enabled=true by default")
	}
}

func TestLoadConfig_CacheEnabledRestored(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	// Config file that doesn't mention cache.enabled at all
	content := `
defaults:
  format: json
cache:
  ttl_minutes: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache.enabled default to survive partial config")
	}
	if cfg.Cache.TTLMinutes != 5 {
		t.Errorf("expected ttl_minutes=5, got %d", cfg.Cache.TTLMinutes)
	}
}

func TestLoadConfig_ExplicitCacheDisable(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
cache:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.Enabled {
		t.Error("expected explicit cache.enabled=false to be honored")
	}
}

func TestLoadConfig_ProfilesInitialized(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Profiles == nil {
		t.Error("expected profiles map to be initialized")
	}
	// Default ci profile should exist
	if _, ok := cfg.Profiles["ci"]; !ok {
		t.Error("expected 'ci' profile to exist in defaults")
	}
}

func TestGetProfile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	profile := cfg.GetProfile("ci")
	if profile == nil {
		t.Fatal("expected ci profile")
	}
	if profile.Format != "json" {
		t.Errorf("expected ci profile format=json, got %q", profile.Format)
	}
	if profile.Severity != "high" {
		t.Errorf("expected ci profile severity=high, got %q", profile.Severity)
	}

	if cfg.GetProfile("nonexistent") != nil {
		t.Error("expected nil for unknown profile")
	}
}

func TestValidateConfig_BadSeverity(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Defaults.Severity = "critical"
	if err := ValidateConfig(cfg); err == nil {
		t.Error("expected error for invalid severity level")
	}
}

func TestValidateConfig_BadTolerance(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Comparison.NumericTolerance = 0
	if err := ValidateConfig(cfg); err == nil {
		t.Error("expected error for non-positive tolerance")
	}
}

func TestValidateSeverity_CommaSeparated(t *testing.T) {
	if err := validateSeverity("high,warn"); err != nil {
		t.Errorf("unexpected error for 'high,warn': %v", err)
	}
	if err := validateSeverity("HIGH, Info"); err != nil {
		t.Errorf("severity check should be case-insensitive: %v", err)
	}
	if err := validateSeverity("high,banana"); err == nil {
		t.Error("expected error for unknown severity in list")
	}
}
