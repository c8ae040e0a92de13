// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docconform/internal/paths"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Default settings
	Defaults struct {
		Format       string `yaml:"format"`
		Severity     string `yaml:"severity"`
		Verbose      bool   `yaml:"verbose"`
		Debug        bool   `yaml:"debug"`
		NoColor      bool   `yaml:"no_color"`
		Quiet        bool   `yaml:"quiet"`
		ShowEvidence bool   `yaml:"show_evidence"`
		Store        bool   `yaml:"store"`
	} `yaml:"defaults"`

	// Term-extraction tuning. The scoring constants carry the values the
	// rule catalog was calibrated with; they are configurable, not derived.
	Extraction struct {
		ContextChars       int     `yaml:"context_chars"`
		LongMatchBonus     float64 `yaml:"long_match_bonus"`
		GroupAbsentPenalty float64 `yaml:"group_absent_penalty"`
		MinTextLength      int     `yaml:"min_text_length"`
		RulesFile          string  `yaml:"rules_file"`
	} `yaml:"extraction"`

	// Value-comparison tuning
	Comparison struct {
		NumericTolerance float64 `yaml:"numeric_tolerance"`
	} `yaml:"comparison"`

	// OCR fallback for pages without a text layer
	OCR struct {
		Enabled           bool    `yaml:"enabled"`
		Language          string  `yaml:"language"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"ocr"`

	// Extraction result cache
	Cache struct {
		Enabled    bool `yaml:"enabled"`
		TTLMinutes int  `yaml:"ttl_minutes"`
	} `yaml:"cache"`

	// Review persistence
	Store struct {
		Path          string `yaml:"path"`
		BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	} `yaml:"store"`

	// Web server
	Web struct {
		Port        int    `yaml:"port"`
		MaxUploadMB int    `yaml:"max_upload_mb"`
		DataDir     string `yaml:"data_dir"`
	} `yaml:"web"`

	// Issue waivers
	Waivers struct {
		File         string `yaml:"file"`
		AutoGenerate bool   `yaml:"auto_generate"`
	} `yaml:"waivers"`

	// Profiles for different review scenarios
	Profiles map[string]Profile `yaml:"profiles"`
}

// Profile represents a review profile with specific settings
type Profile struct {
	Format       string `yaml:"format"`
	Severity     string `yaml:"severity"`
	Verbose      bool   `yaml:"verbose"`
	Debug        bool   `yaml:"debug"`
	NoColor      bool   `yaml:"no_color"`
	Quiet        bool   `yaml:"quiet"`
	ShowEvidence bool   `yaml:"show_evidence"`
	Description  string `yaml:"description"`
}

// LoadConfig loads configuration from the specified file path
func LoadConfig(configPath string) (*Config, error) {
	// Default configuration
	config := &Config{
		Profiles: make(map[string]Profile),
	}

	// Set default values
	config.Defaults.Format = "text"
	config.Defaults.Severity = "all"
	config.Defaults.Verbose = false
	config.Defaults.Debug = false
	config.Defaults.NoColor = false
	config.Defaults.Quiet = false
	config.Defaults.ShowEvidence = false
	config.Defaults.Store = false

	config.Extraction.ContextChars = 100
	config.Extraction.LongMatchBonus = 0.05
	config.Extraction.GroupAbsentPenalty = 0.10
	config.Extraction.MinTextLength = 100

	config.Comparison.NumericTolerance = 0.001

	config.OCR.Enabled = false
	config.OCR.Language = "eng"
	config.OCR.RequestsPerSecond = 2
	config.OCR.Burst = 2

	config.Cache.Enabled = true
	config.Cache.TTLMinutes = 30

	config.Store.Path = filepath.Join(paths.GetDataDir(), "docconform.db")
	config.Store.BusyTimeoutMS = 5000

	config.Web.Port = 8080
	config.Web.MaxUploadMB = 32
	config.Web.DataDir = paths.GetDataDir()

	config.Waivers.File = ""
	config.Waivers.AutoGenerate = false

	// Add default CI profile
	config.Profiles["ci"] = Profile{
		Format:      "json",
		Severity:    "high",
		Quiet:       true,
		NoColor:     true,
		Description: "Optimized for CI pipelines with machine-readable output and high-severity gating",
	}

	// If no config file specified, return default config
	if configPath == "" {
		return config, nil
	}

	// Read config file
	cleanPath := filepath.Clean(configPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Store default values before unmarshaling
	defaultCacheEnabled := config.Cache.Enabled

	// Parse YAML
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Restore defaults if not explicitly set in config file.
	// YAML unmarshaling sets bool fields to false when they're absent.
	if !containsField(data, "cache", "enabled") {
		config.Cache.Enabled = defaultCacheEnabled
	}

	// Validate the configuration
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// FindConfigFile looks for a configuration file in standard locations
func FindConfigFile() string {
	// Check current directory first
	for _, name := range []string{"docconform.yaml", "docconform.yml", ".docconform.yaml", ".docconform.yml"} {
		if fileExists(name) {
			return name
		}
	}

	// Check standard config directory
	standardConfig := paths.GetConfigFile()
	if fileExists(standardConfig) {
		return standardConfig
	}

	// Check legacy locations in home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{".docconform.yaml", ".docconform.yml"} {
		homeConfig := filepath.Join(home, name)
		if fileExists(homeConfig) {
			return homeConfig
		}
	}

	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return info != nil && !info.IsDir()
}

// ListProfiles returns a list of available profile names
func (c *Config) ListProfiles() []string {
	profiles := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		profiles = append(profiles, name)
	}
	return profiles
}

// GetProfile returns a profile by name, or nil if not found
func (c *Config) GetProfile(name string) *Profile {
	if profile, exists := c.Profiles[name]; exists {
		return &profile
	}
	return nil
}

// GetCIProfile returns the CI profile, creating a default one if it doesn't exist
func (c *Config) GetCIProfile() *Profile {
	if profile := c.GetProfile("ci"); profile != nil {
		return profile
	}

	defaultProfile := Profile{
		Format:      "json",
		Severity:    "high",
		Quiet:       true,
		NoColor:     true,
		Description: "Optimized for CI pipelines with machine-readable output and high-severity gating",
	}
	return &defaultProfile
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	err := yaml.Unmarshal(data, &yamlData)
	if err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			// Last key - check if it exists
			_, exists := current[key]
			return exists
		}
		// Intermediate key - navigate deeper
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return false
		}
	}
	return false
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if err := validateSeverity(config.Defaults.Severity); err != nil {
		return err
	}
	for name, profile := range config.Profiles {
		if profile.Severity != "" {
			if err := validateSeverity(profile.Severity); err != nil {
				return fmt.Errorf("profile '%s': %w", name, err)
			}
		}
	}

	if config.Comparison.NumericTolerance <= 0 {
		return fmt.Errorf("comparison.numeric_tolerance must be positive, got %g", config.Comparison.NumericTolerance)
	}
	if config.Extraction.ContextChars < 0 {
		return fmt.Errorf("extraction.context_chars cannot be negative, got %d", config.Extraction.ContextChars)
	}
	if config.Web.MaxUploadMB <= 0 {
		return fmt.Errorf("web.max_upload_mb must be positive, got %d", config.Web.MaxUploadMB)
	}

	// Validate paths in configuration
	for field, p := range map[string]string{
		"store.path":            config.Store.Path,
		"web.data_dir":          config.Web.DataDir,
		"waivers.file":          config.Waivers.File,
		"extraction.rules_file": config.Extraction.RulesFile,
	} {
		if p == "" {
			continue
		}
		if err := paths.ValidatePath(p); err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
	}

	return nil
}

// validateSeverity checks a comma-separated severity filter expression
func validateSeverity(severity string) error {
	if severity == "" {
		return nil
	}
	for _, part := range strings.Split(severity, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "high", "warn", "info", "all", "":
		default:
			return fmt.Errorf("invalid severity level '%s' (valid: high, warn, info, all)", strings.TrimSpace(part))
		}
	}
	return nil
}

// LoadConfigOrDefault loads configuration from configFile (or searches standard
// locations when configFile is empty). If loading fails, it returns a default
// configuration. This is the shared helper used by both the CLI and the web server.
func LoadConfigOrDefault(configFile string) *Config {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		// Fall back to defaults — callers should not crash on a missing/bad config file.
		cfg, _ = LoadConfig("")
	}
	return cfg
}
