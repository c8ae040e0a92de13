// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package waivers manages reviewed-and-accepted issue waivers. A waiver
// matches an issue by fingerprint, so a waived finding resurfaces as
// soon as its underlying values change. Evidence is hashed before it is
// written to the waiver file; document text never leaves the review.
package waivers

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"docconform/internal/paths"
	"docconform/internal/reconcile"
)

// WaiverRule represents a single waiver rule.
type WaiverRule struct {
	ID         string            `yaml:"id"`
	Hash       string            `yaml:"hash"`
	Reason     string            `yaml:"reason"`
	Enabled    bool              `yaml:"enabled"`
	CreatedBy  string            `yaml:"created_by,omitempty"`
	CreatedAt  time.Time         `yaml:"created_at"`
	LastSeenAt *time.Time        `yaml:"last_seen_at,omitempty"`
	ExpiresAt  *time.Time        `yaml:"expires_at,omitempty"`
	ReviewedBy string            `yaml:"reviewed_by,omitempty"`
	ReviewedAt *time.Time        `yaml:"reviewed_at,omitempty"`
	Metadata   map[string]string `yaml:"metadata,omitempty"`
}

// Config represents the waiver configuration file.
type Config struct {
	Version string       `yaml:"version"`
	Rules   []WaiverRule `yaml:"rules"`
}

// Manager matches issues against waiver rules.
type Manager struct {
	configPath string
	config     *Config
	enabled    bool
}

// NewManager creates a waiver manager backed by the given file. An
// empty path falls back to the default waiver file location. A missing
// or unreadable file yields an empty rule set, not an error.
func NewManager(configPath string) *Manager {
	if configPath == "" {
		configPath = paths.GetWaiversFile()
	}

	manager := &Manager{
		configPath: configPath,
		enabled:    true,
	}

	manager.loadConfig()
	return manager
}

func (m *Manager) loadConfig() {
	empty := &Config{Version: "1.0", Rules: []WaiverRule{}}

	if m.configPath == "" {
		m.config = empty
		return
	}

	data, err := os.ReadFile(filepath.Clean(m.configPath))
	if err != nil {
		m.config = empty
		return
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		m.config = empty
		return
	}

	m.config = &config
}

// FingerprintIssue creates a unique hash for an issue. The code, the
// severity and the term key identify the finding; the evidence strings
// are hashed in so a waiver stops matching when the values move.
func (m *Manager) FingerprintIssue(issue reconcile.Issue) string {
	components := []string{
		string(issue.Code),
		string(issue.Severity),
		issue.RelatedTermKey,
		m.hashSensitiveData(issue.Evidence),
		m.hashSensitiveData(issue.ApprovedEvidence + issue.ExecutedEvidence),
	}

	composite := strings.Join(components, "|")
	hash := sha256.Sum256([]byte(composite))
	return fmt.Sprintf("%x", hash)
}

// hashSensitiveData hashes document-derived text before it is persisted.
func (m *Manager) hashSensitiveData(data string) string {
	if data == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)[:16]
}

// IsWaived checks whether an issue is covered by an active waiver.
func (m *Manager) IsWaived(issue reconcile.Issue) (bool, *WaiverRule) {
	if !m.enabled || m.config == nil {
		return false, nil
	}

	fingerprint := m.FingerprintIssue(issue)

	for _, rule := range m.config.Rules {
		if rule.Hash == fingerprint {
			if !rule.Enabled {
				continue
			}
			if rule.ExpiresAt != nil && time.Now().After(*rule.ExpiresAt) {
				continue
			}
			return true, &rule
		}
	}

	return false, nil
}

// GetExpiredRule returns the enabled-but-expired rule covering an
// issue, if one exists. Reports surface these so waivers get renewed
// deliberately rather than silently lapsing.
func (m *Manager) GetExpiredRule(issue reconcile.Issue) *WaiverRule {
	if !m.enabled || m.config == nil {
		return nil
	}

	fingerprint := m.FingerprintIssue(issue)

	for _, rule := range m.config.Rules {
		if rule.Hash == fingerprint && rule.Enabled {
			if rule.ExpiresAt != nil && time.Now().After(*rule.ExpiresAt) {
				return &rule
			}
		}
	}

	return nil
}

// FilterIssues splits issues into active and waived.
func (m *Manager) FilterIssues(issues []reconcile.Issue) (active, waived []reconcile.Issue) {
	for _, issue := range issues {
		if ok, _ := m.IsWaived(issue); ok {
			waived = append(waived, issue)
			continue
		}
		active = append(active, issue)
	}
	return active, waived
}

// Add creates a waiver rule for an issue. A nil expiry defaults to one
// week out so waivers lapse unless renewed.
func (m *Manager) Add(issue reconcile.Issue, reason, createdBy string, expiresAt *time.Time) error {
	if m.config == nil {
		m.config = &Config{Version: "1.0", Rules: []WaiverRule{}}
	}

	fingerprint := m.FingerprintIssue(issue)

	for _, rule := range m.config.Rules {
		if rule.Hash == fingerprint {
			return fmt.Errorf("waiver rule already exists for this issue")
		}
	}

	if expiresAt == nil {
		defaultExpiry := time.Now().AddDate(0, 0, 7)
		expiresAt = &defaultExpiry
	}

	rule := WaiverRule{
		ID:        nextID(m.config.Rules),
		Hash:      fingerprint,
		Reason:    reason,
		Enabled:   true,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		Metadata:  issueMetadata(issue, m),
	}

	m.config.Rules = append(m.config.Rules, rule)
	return m.saveConfig()
}

// Remove deletes a waiver rule by ID.
func (m *Manager) Remove(id string) error {
	if m.config == nil {
		return fmt.Errorf("no waiver config loaded")
	}

	for i, rule := range m.config.Rules {
		if rule.ID == id {
			m.config.Rules = append(m.config.Rules[:i], m.config.Rules[i+1:]...)
			return m.saveConfig()
		}
	}

	return fmt.Errorf("waiver rule with ID %s not found", id)
}

// List returns all waiver rules.
func (m *Manager) List() []WaiverRule {
	if m.config == nil {
		return []WaiverRule{}
	}
	return m.config.Rules
}

// CleanupExpired removes expired waiver rules and reports how many.
func (m *Manager) CleanupExpired() int {
	if m.config == nil {
		return 0
	}

	now := time.Now()
	originalCount := len(m.config.Rules)

	var activeRules []WaiverRule
	for _, rule := range m.config.Rules {
		if rule.ExpiresAt == nil || now.Before(*rule.ExpiresAt) {
			activeRules = append(activeRules, rule)
		}
	}

	m.config.Rules = activeRules
	removed := originalCount - len(activeRules)

	if removed > 0 {
		_ = m.saveConfig()
	}

	return removed
}

// GenerateWaiverRules creates rules for a run's issues in bulk. Issues
// already covered get their last-seen timestamp refreshed instead.
// Callers pass enabled=false to stage rules for review.
func (m *Manager) GenerateWaiverRules(issues []reconcile.Issue, reason string, enabled bool) error {
	if m.config == nil {
		m.config = &Config{Version: "1.0", Rules: []WaiverRule{}}
	}

	existing := make(map[string]*WaiverRule)
	for i := range m.config.Rules {
		existing[m.config.Rules[i].Hash] = &m.config.Rules[i]
	}

	added := 0
	updated := 0
	now := time.Now()

	for _, issue := range issues {
		fingerprint := m.FingerprintIssue(issue)

		if rule, exists := existing[fingerprint]; exists {
			rule.LastSeenAt = &now
			updated++
			continue
		}

		defaultExpiry := now.AddDate(0, 0, 7)
		rule := WaiverRule{
			ID:         nextID(m.config.Rules),
			Hash:       fingerprint,
			Reason:     reason,
			Enabled:    enabled,
			CreatedAt:  now,
			LastSeenAt: &now,
			ExpiresAt:  &defaultExpiry,
			Metadata:   issueMetadata(issue, m),
		}

		m.config.Rules = append(m.config.Rules, rule)
		added++
	}

	if added > 0 || updated > 0 {
		return m.saveConfig()
	}
	return nil
}

// EnableByHash enables a waiver rule by fingerprint.
func (m *Manager) EnableByHash(hash, reason string) error {
	if m.config == nil {
		return fmt.Errorf("no waiver config loaded")
	}

	for i := range m.config.Rules {
		if m.config.Rules[i].Hash == hash {
			m.config.Rules[i].Enabled = true
			if reason != "" {
				m.config.Rules[i].Reason = reason
			}
			now := time.Now()
			m.config.Rules[i].LastSeenAt = &now
			return m.saveConfig()
		}
	}

	return fmt.Errorf("waiver rule with hash %s not found", hash)
}

// DisableByID disables a waiver rule without deleting it.
func (m *Manager) DisableByID(id string) error {
	if m.config == nil {
		return fmt.Errorf("no waiver config loaded")
	}

	for i := range m.config.Rules {
		if m.config.Rules[i].ID == id {
			m.config.Rules[i].Enabled = false
			return m.saveConfig()
		}
	}

	return fmt.Errorf("waiver rule with ID %s not found", id)
}

// Edit rewrites a waiver rule's reviewable fields.
func (m *Manager) Edit(id, reason, createdBy string, enabled bool, expiresAt *time.Time) error {
	if m.config == nil {
		return fmt.Errorf("no waiver config loaded")
	}

	for i := range m.config.Rules {
		if m.config.Rules[i].ID == id {
			m.config.Rules[i].Reason = reason
			m.config.Rules[i].CreatedBy = createdBy
			m.config.Rules[i].Enabled = enabled
			m.config.Rules[i].ExpiresAt = expiresAt
			return m.saveConfig()
		}
	}

	return fmt.Errorf("waiver rule with ID %s not found", id)
}

// SetEnabled enables or disables waiver matching entirely.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// IsEnabled returns whether waiver matching is enabled.
func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// ConfigPath returns the path to the waiver file.
func (m *Manager) ConfigPath() string {
	return m.configPath
}

func (m *Manager) saveConfig() error {
	if m.configPath == "" {
		m.configPath = paths.GetWaiversFile()
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to marshal waiver config: %w", err)
	}

	dir := filepath.Dir(m.configPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write waiver config: %w", err)
	}

	return nil
}

// nextID picks the next sequential rule ID.
func nextID(rules []WaiverRule) string {
	maxID := 0
	for _, rule := range rules {
		if rule.ID == "" {
			continue
		}
		var num int
		if _, err := fmt.Sscanf(rule.ID, "WAI-%08d", &num); err == nil && num > maxID {
			maxID = num
		}
	}
	return fmt.Sprintf("WAI-%08d", maxID+1)
}

func issueMetadata(issue reconcile.Issue, m *Manager) map[string]string {
	return map[string]string{
		"issue_code":       string(issue.Code),
		"severity":         string(issue.Severity),
		"related_term_key": issue.RelatedTermKey,
		"evidence_hash":    m.hashSensitiveData(issue.Evidence),
	}
}
