// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// GetConfigDir returns the docconform configuration directory.
// Windows uses APPDATA, everything else follows the XDG Base Directory
// specification with ~/.config as the fallback.
func GetConfigDir() string {
	// Check for explicit override first (works on all platforms)
	if dir := os.Getenv("DOCCONFORM_CONFIG_DIR"); dir != "" {
		return dir
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "docconform")
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, ".docconform")
		}
		return ".docconform"
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".docconform"
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "docconform")
}

// GetConfigFile returns the path to the main config file
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// GetWaiversFile returns the path to the waivers file
func GetWaiversFile() string {
	return filepath.Join(GetConfigDir(), "waivers.yaml")
}

// GetDataDir returns the directory used for review data (uploads, store)
func GetDataDir() string {
	if dir := os.Getenv("DOCCONFORM_DATA_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(GetConfigDir(), "data")
}

// GetTempDir returns the platform-appropriate temporary directory
func GetTempDir() string {
	return os.TempDir()
}

// NormalizePath normalizes a file path for the current platform.
// Converts separators and cleans redundant elements.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	normalized := filepath.FromSlash(path)
	return filepath.Clean(normalized)
}

// IsAbsolutePath checks if a path is absolute on the current platform
func IsAbsolutePath(path string) bool {
	return filepath.IsAbs(path)
}

// ResolvePath resolves a path to its absolute form
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(NormalizePath(path))
}

// ValidatePath validates a path for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return nil // Empty path is valid
	}

	if runtime.GOOS == "windows" {
		return validateWindowsPath(path)
	}
	return validateUnixPath(path)
}

// validateWindowsPath validates a Windows path
func validateWindowsPath(path string) error {
	// Check for invalid characters
	invalidChars := []rune{'<', '>', ':', '"', '|', '?', '*'}
	for i, char := range path {
		for _, invalid := range invalidChars {
			if char == invalid {
				// Skip colon if it's part of a drive letter (position 1: C:)
				if char == ':' && i == 1 && len(path) >= 2 {
					continue
				}
				return &PathValidationError{
					Path:   path,
					Reason: "contains invalid character: " + string(char),
				}
			}
		}
	}

	if len(path) > 32767 {
		return &PathValidationError{
			Path:   path,
			Reason: "path exceeds maximum length of 32,767 characters",
		}
	}

	return nil
}

// validateUnixPath validates a Unix path
func validateUnixPath(path string) error {
	// Unix paths are generally more permissive
	// Main restriction is null bytes
	if strings.ContainsRune(path, 0) {
		return &PathValidationError{
			Path:   path,
			Reason: "contains null byte",
		}
	}
	return nil
}

// PathValidationError represents a path validation error
type PathValidationError struct {
	Path   string
	Reason string
}

func (e *PathValidationError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Reason
}
