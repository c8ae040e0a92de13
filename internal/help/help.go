// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package help renders the CLI help topics: general usage, the tracked
// term catalog, and the output format list.
package help

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"docconform/internal/reconcile"
	"docconform/internal/report"
	"docconform/internal/terms"
)

// System renders help content.
type System struct {
	noColor bool
	colors  map[string]*color.Color
}

// NewSystem creates a help system.
func NewSystem(noColor bool) *System {
	if noColor {
		color.NoColor = true
	}
	return &System{
		noColor: noColor,
		colors: map[string]*color.Color{
			"title":    color.New(color.FgWhite, color.Bold),
			"header":   color.New(color.FgBlue, color.Bold),
			"item":     color.New(color.FgCyan),
			"emphasis": color.New(color.FgWhite, color.Bold),
			"high":     color.New(color.FgRed),
			"warn":     color.New(color.FgYellow),
			"example":  color.New(color.FgMagenta),
		},
	}
}

// ShowGeneralHelp displays general usage information.
func (h *System) ShowGeneralHelp() {
	h.colors["title"].Println("DocConform - Credit Agreement Conformance Checker")
	fmt.Println("=================================================")
	fmt.Println()
	fmt.Println("Reconciles an executed credit agreement against its approved credit")
	fmt.Println("summary. Every extracted term carries evidence from the document text;")
	fmt.Println("deviations are reported as typed issues with severities.")
	fmt.Println()
	h.colors["header"].Println("USAGE:")
	fmt.Println("  docconform -executed <agreement> [-approved <summary>] [options]")
	fmt.Println("  docconform -web [-port <port>]  # API server mode")
	fmt.Println()

	h.colors["header"].Println("OPTIONS:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  -executed\t<path>\tPath to the executed agreement (PDF, TXT, or image; required)")
	fmt.Fprintln(w, "  -approved\t<path>\tPath to the approved credit summary / term sheet")
	fmt.Fprintln(w, "  -config\t<path>\tPath to configuration file (YAML)")
	fmt.Fprintln(w, "  -profile\t<name>\tProfile name to use from config file")
	fmt.Fprintln(w, "  -list-profiles\t\tList available profiles in config file")
	fmt.Fprintln(w, "  -rules\t<path>\tCustom term catalog file (YAML)")
	fmt.Fprintln(w, "  -format\t<format>\tOutput format: text, json, csv, yaml, xlsx (default: text)")
	fmt.Fprintln(w, "  -output\t<path>\tPath to output file (default: stdout)")
	fmt.Fprintln(w, "  -severity\t<levels>\tSeverity levels to display: high,warn,info,all (default: all)")
	fmt.Fprintln(w, "  -verbose\t\tDisplay detailed evidence for each issue")
	fmt.Fprintln(w, "  -show-evidence\t\tInclude evidence snippets in the term grid")
	fmt.Fprintln(w, "  -debug\t\tEnable debug logging of extraction and validation flow")
	fmt.Fprintln(w, "  -no-color\t\tDisable colored output")
	fmt.Fprintln(w, "  -quiet\t\tSuppress progress output (useful for CI)")
	fmt.Fprintln(w, "  -waiver-file\t<path>\tPath to waiver configuration file (default: .docconform-waivers.yaml)")
	fmt.Fprintln(w, "  -show-waived\t\tInclude waived issues in output with their rule details")
	fmt.Fprintln(w, "  -generate-waivers\t\tGenerate waiver rules for all issues (disabled by default)")
	fmt.Fprintln(w, "  -store\t\tPersist the review and its results to the SQLite store")
	fmt.Fprintln(w, "  -verify-term\t<key>\tVerify a single term in the executed document and exit")
	fmt.Fprintln(w, "  -expect\t<value>\tExpected value for -verify-term")
	fmt.Fprintln(w, "  -web\t\tStart the review API server instead of a CLI run")
	fmt.Fprintln(w, "  -port\t<port>\tPort for the API server (default: 8080, only used with -web)")
	fmt.Fprintln(w, "  -version\t\tShow version information")
	fmt.Fprintln(w, "  -help\t\tShow this help message")
	fmt.Fprintln(w, "  -help terms\t\tList the tracked terms and required clauses")
	fmt.Fprintln(w, "  -help formats\t\tList the output formats")
	fmt.Fprintln(w, "  -help <term>\t\tShow detailed help for a tracked term")
	w.Flush()

	fmt.Println()
	h.colors["header"].Println("EXAMPLES:")
	fmt.Println("  Basic Usage:")
	h.colors["example"].Println("    docconform -executed agreement.pdf -approved summary.pdf")
	h.colors["example"].Println("    docconform -executed agreement.pdf -approved summary.pdf -verbose -severity high,warn")
	fmt.Println("  CI Gating:")
	h.colors["example"].Println("    docconform -executed agreement.pdf -approved summary.pdf -profile ci")
	fmt.Println("  Verification:")
	h.colors["example"].Println("    docconform -executed agreement.pdf -verify-term maturity_date -expect 2028-06-30")
	fmt.Println("  Server Mode:")
	h.colors["example"].Println("    docconform -web -port 9000")

	fmt.Println()
	h.colors["header"].Println("EXIT CODES:")
	fmt.Println("  0  no active HIGH issues")
	fmt.Println("  1  usage or system error")
	fmt.Println("  3  active HIGH severity issues found")

	fmt.Println()
	h.colors["header"].Println("CONFIGURATION:")
	fmt.Println("  Default config: ~/.docconform/config.yaml")
	fmt.Println("  Project config: docconform.yaml or .docconform.yaml (in current directory)")
	fmt.Println("  Environment: DOCCONFORM_CONFIG_DIR - Override config directory")
}

// ShowTermsHelp lists the tracked terms and required clauses.
func (h *System) ShowTermsHelp() {
	h.colors["title"].Println("Tracked Terms")
	fmt.Println("=============")
	fmt.Println()
	fmt.Println("The following terms are extracted from both documents and compared:")
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TERM\tLABEL\tCOMPARISON\tSEVERITY")
	fmt.Fprintln(w, "  ----\t-----\t----------\t--------")
	for _, rule := range terms.DefaultCatalog() {
		vr, tracked := reconcile.TrackedRule(rule.Key)
		if !tracked {
			continue
		}
		severity := "WARN"
		if vr.HighSeverity {
			severity = "HIGH"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", rule.Key, rule.Label, vr.Comparison, severity)
	}
	w.Flush()

	fmt.Println()
	h.colors["header"].Println("REQUIRED CLAUSES:")
	for _, clause := range reconcile.Clauses() {
		fmt.Print("  - ")
		h.colors["item"].Printf("%s", clause.Key)
		fmt.Printf(" (%s)\n", clause.Label)
	}

	fmt.Println()
	fmt.Println("For detailed information about a term, use:")
	h.colors["example"].Println("  docconform -help <term>")
}

// ShowTermHelp displays detail for one tracked term. Returns false when
// the key is unknown.
func (h *System) ShowTermHelp(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))

	var catalogRule *terms.Rule
	for _, rule := range terms.DefaultCatalog() {
		if rule.Key == key {
			r := rule
			catalogRule = &r
			break
		}
	}
	if catalogRule == nil {
		h.colors["high"].Printf("Error: term '%s' not found.\n", key)
		fmt.Println("Use 'docconform -help terms' to see the tracked terms.")
		return false
	}

	h.colors["title"].Printf("%s\n", catalogRule.Label)
	fmt.Println(strings.Repeat("=", len(catalogRule.Label)))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Key:\t%s\n", catalogRule.Key)
	fmt.Fprintf(w, "  Base confidence:\t%.2f\n", catalogRule.ConfidenceBase)
	if catalogRule.BooleanPresence {
		fmt.Fprintln(w, "  Kind:\tclause presence (value is Yes when any pattern matches)")
	}
	if vr, tracked := reconcile.TrackedRule(key); tracked {
		severity := "WARN"
		if vr.HighSeverity {
			severity = "HIGH"
		}
		fmt.Fprintf(w, "  Comparison:\t%s\n", vr.Comparison)
		fmt.Fprintf(w, "  Mismatch severity:\t%s\n", severity)
	}
	w.Flush()
	fmt.Println()

	h.colors["header"].Println("PATTERNS:")
	for _, pattern := range catalogRule.Patterns {
		fmt.Print("  - ")
		h.colors["item"].Println(pattern.String())
	}

	if vr, tracked := reconcile.TrackedRule(key); tracked && vr.RegulationImpact != "" {
		fmt.Println()
		h.colors["header"].Println("REGULATORY IMPACT:")
		fmt.Printf("  %s\n", vr.RegulationImpact)
	}
	return true
}

// ShowFormatsHelp lists the registered output formats.
func (h *System) ShowFormatsHelp() {
	h.colors["title"].Println("Output Formats")
	fmt.Println("==============")
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  FORMAT\tEXTENSION\tDESCRIPTION")
	fmt.Fprintln(w, "  ------\t---------\t-----------")
	for _, info := range report.GetSupportedFormats() {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", info.Name, info.Extension, info.Description)
	}
	w.Flush()

	fmt.Println()
	fmt.Println("Example:")
	h.colors["example"].Println("  docconform -executed agreement.pdf -approved summary.pdf -format json -output report.json")
}
