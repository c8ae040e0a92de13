// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package normalize converts extracted term values to canonical forms so
// that documents using different notations can be compared. Every
// conversion is deterministic. Values that cannot be parsed are returned
// unchanged so the comparison falls back to the raw text.
package normalize

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"docconform/internal/logging"
	"docconform/internal/terms"
)

var monthNumbers = map[string]int{
	"january":   1,
	"february":  2,
	"march":     3,
	"april":     4,
	"may":       5,
	"june":      6,
	"july":      7,
	"august":    8,
	"september": 9,
	"october":   10,
	"november":  11,
	"december":  12,
}

var (
	isoDatePattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthNamePattern     = regexp.MustCompile(`(?i)^(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2}),?\s+(\d{4})`)
	monthFirstPattern    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)
	dayFirstPattern      = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})`)
	yearFirstPattern     = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})`)
	currencySymbols      = regexp.MustCompile(`[$€£¥]`)
	currencyWords        = regexp.MustCompile(`(?i)(USD|EUR|GBP|CHF|JPY|dollars?|euros?|pounds?)`)
	numericToken         = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	bpsRangePattern      = regexp.MustCompile(`(?i)(\d+)\s*[-–]\s*(\d+)\s*(?:bps|bp|basis)`)
	bpsPattern           = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:bps|bp|basis\s+points?)`)
	percentPattern       = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	decimalRatePattern   = regexp.MustCompile(`^0\.(\d+)$`)
	ratioToOnePattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:to|:)\s*1(?:\.00)?`)
	ratioSuffixPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*[x×]`)
	bareNumberPattern    = regexp.MustCompile(`^(\d+(?:\.\d+)?)$`)
)

var booleanPositives = []string{"yes", "true", "1", "present", "found", "included", "required"}

// Normalizer rewrites raw extracted values into canonical forms and logs
// values it cannot interpret.
type Normalizer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Normalizer{logger: logger}
}

// Value normalizes a raw term value based on what kind of term the key
// names. Unknown keys pass through with whitespace trimmed.
func (n *Normalizer) Value(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)
	switch {
	case strings.Contains(lowerKey, "date"):
		return n.Date(value)
	case strings.Contains(lowerKey, "amount"):
		formatted, _, _ := n.Amount(value)
		return formatted
	case strings.Contains(lowerKey, "margin"), strings.Contains(lowerKey, "spread"), strings.Contains(lowerKey, "bps"):
		formatted, _, _ := n.BasisPoints(value)
		return formatted
	case strings.Contains(lowerKey, "ratio"), strings.Contains(lowerKey, "leverage"), strings.Contains(lowerKey, "coverage"):
		formatted, _, _ := n.Ratio(value)
		return formatted
	case strings.Contains(lowerKey, "present"), strings.Contains(lowerKey, "required"):
		return Boolean(value)
	case key == "currency":
		return CurrencyCode(value)
	}
	return strings.TrimSpace(value)
}

// Apply normalizes a term in place. The pre-normalization value is kept
// in RawValue and the Normalized flag records whether anything changed.
func (n *Normalizer) Apply(t *terms.Term) {
	raw := t.Value
	t.RawValue = raw

	normalized := n.Value(t.Key, raw)
	if normalized != raw {
		t.Value = normalized
		t.Normalized = true
	}
}

// ApplyAll normalizes every term in the slice in place.
func (n *Normalizer) ApplyAll(ts []terms.Term) {
	for i := range ts {
		n.Apply(&ts[i])
	}
}

// Date normalizes a date string to ISO form (YYYY-MM-DD). Month-name,
// US month-first slash, European day-first dash and year-first slash
// notations are recognized. Anything else is returned unchanged.
func (n *Normalizer) Date(value string) string {
	if value == "" {
		return value
	}
	value = strings.TrimSpace(value)

	if isoDatePattern.MatchString(value) {
		return value
	}

	if m := monthNamePattern.FindStringSubmatch(value); m != nil {
		month := monthNumbers[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
	}

	if m := monthFirstPattern.FindStringSubmatch(value); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
	}

	if m := dayFirstPattern.FindStringSubmatch(value); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
	}

	if m := yearFirstPattern.FindStringSubmatch(value); m != nil {
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
	}

	n.logger.Warn("could not normalize date", "value", value)
	return value
}

// Amount normalizes a currency amount to "CODE 1,234,567" form. It
// returns the formatted string, the numeric value and whether parsing
// succeeded. Word multipliers (thousand, million, billion) are applied.
func (n *Normalizer) Amount(value string) (string, float64, bool) {
	if value == "" {
		return value, 0, false
	}
	value = strings.TrimSpace(value)
	original := value

	currency := detectCurrency(value)

	cleaned := currencySymbols.ReplaceAllString(value, "")
	cleaned = currencyWords.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	multiplier := 1.0
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "billion"):
		multiplier = 1_000_000_000
	case strings.Contains(lower, "million"):
		multiplier = 1_000_000
	case strings.Contains(lower, "thousand"):
		multiplier = 1_000
	}

	if token := numericToken.FindString(cleaned); token != "" {
		numeric, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
		if err == nil {
			amount := numeric * multiplier
			precision := 0
			if amount < 1 {
				precision = 2
			}
			formatted := currency + " " + groupThousands(strconv.FormatFloat(amount, 'f', precision, 64))
			return formatted, amount, true
		}
	}

	n.logger.Warn("could not normalize currency amount", "value", value)
	return original, 0, false
}

func detectCurrency(value string) string {
	upper := strings.ToUpper(value)
	switch {
	case strings.Contains(upper, "EUR") || strings.Contains(value, "€"):
		return "EUR"
	case strings.Contains(upper, "GBP") || strings.Contains(value, "£"):
		return "GBP"
	case strings.Contains(upper, "CHF"):
		return "CHF"
	case strings.Contains(upper, "JPY") || strings.Contains(value, "¥"):
		return "JPY"
	}
	return "USD"
}

// groupThousands inserts comma separators into the integer part of a
// non-negative decimal string.
func groupThousands(s string) string {
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if hasFrac {
		return intPart + "." + fracPart
	}
	return intPart
}

// BasisPoints normalizes a margin or spread to basis points. Ranges
// keep their bounds and report the midpoint. Percentages convert at
// 100 bps per percent.
func (n *Normalizer) BasisPoints(value string) (string, int, bool) {
	if value == "" {
		return value, 0, false
	}
	value = strings.TrimSpace(value)
	original := value

	if m := bpsRangePattern.FindStringSubmatch(value); m != nil {
		low, _ := strconv.Atoi(m[1])
		high, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%d-%d bps", low, high), (low + high) / 2, true
	}

	if m := bpsPattern.FindStringSubmatch(value); m != nil {
		bps, _ := strconv.ParseFloat(m[1], 64)
		return fmt.Sprintf("%d bps", int(bps)), int(bps), true
	}

	if m := percentPattern.FindStringSubmatch(value); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		bps := int(pct * 100)
		return fmt.Sprintf("%d bps", bps), bps, true
	}

	if decimalRatePattern.MatchString(value) {
		rate, _ := strconv.ParseFloat(value, 64)
		bps := int(rate * 100 * 100)
		return fmt.Sprintf("%d bps", bps), bps, true
	}

	n.logger.Warn("could not normalize basis points", "value", value)
	return original, 0, false
}

// Ratio normalizes a financial ratio to "N.NNx" form. Unparseable
// values pass through trimmed.
func (n *Normalizer) Ratio(value string) (string, float64, bool) {
	if value == "" {
		return value, 0, false
	}
	value = strings.TrimSpace(value)

	for _, pattern := range []*regexp.Regexp{ratioToOnePattern, ratioSuffixPattern, bareNumberPattern} {
		if m := pattern.FindStringSubmatch(value); m != nil {
			ratio, _ := strconv.ParseFloat(m[1], 64)
			return fmt.Sprintf("%.2fx", ratio), ratio, true
		}
	}
	return value, 0, false
}

// Boolean normalizes presence indicators to "Yes" or "No".
func Boolean(value string) string {
	if value == "" {
		return "No"
	}
	value = strings.ToLower(strings.TrimSpace(value))
	for _, positive := range booleanPositives {
		if strings.Contains(value, positive) {
			return "Yes"
		}
	}
	return "No"
}

// CurrencyCode normalizes a currency description to a three-letter
// code. Unrecognized currencies fall back to the first three characters
// of the uppercased value.
func CurrencyCode(value string) string {
	upper := strings.ToUpper(strings.TrimSpace(value))
	switch {
	case strings.Contains(upper, "DOLLAR") || strings.Contains(upper, "USD") || strings.Contains(value, "$"):
		return "USD"
	case strings.Contains(upper, "EURO") || strings.Contains(upper, "EUR") || strings.Contains(value, "€"):
		return "EUR"
	case strings.Contains(upper, "POUND") || strings.Contains(upper, "GBP") || strings.Contains(value, "£"):
		return "GBP"
	}
	if len([]rune(value)) >= 3 {
		runes := []rune(upper)
		if len(runes) > 3 {
			runes = runes[:3]
		}
		return string(runes)
	}
	return value
}
