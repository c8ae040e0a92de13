// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"docconform/internal/config"
	"docconform/internal/help"
	"docconform/internal/logging"
	"docconform/internal/reconcile"
	"docconform/internal/report"
	"docconform/internal/review"
	"docconform/internal/store"
	"docconform/internal/terms"
	"docconform/internal/version"
	"docconform/internal/waivers"
	"docconform/internal/web"

	// Register the report formatters.
	_ "docconform/internal/report/csv"
	_ "docconform/internal/report/json"
	_ "docconform/internal/report/text"
	_ "docconform/internal/report/xlsx"
	_ "docconform/internal/report/yaml"
)

// Exit codes. 3 gates CI pipelines on HIGH findings.
const (
	exitClean      = 0
	exitError      = 1
	exitHighIssues = 3
)

// loadConfiguration loads the configuration file or returns defaults.
func loadConfiguration(configFile string) *config.Config {
	configPath := configFile
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Error loading config file: %v\n", err)
		fmt.Fprintf(os.Stderr, "Using default configuration\n")
		cfg, _ = config.LoadConfig("")
	}
	return cfg
}

// configFlags holds command line flag values that participate in
// config/profile/flag resolution.
type configFlags struct {
	format       string
	severity     string
	verbose      bool
	debug        bool
	noColor      bool
	quiet        bool
	showEvidence bool
	storeEnabled bool
	waiverFile   string
	rulesFile    string
}

// finalConfiguration holds resolved configuration values.
type finalConfiguration struct {
	format       string
	severity     string
	verbose      bool
	debug        bool
	noColor      bool
	quiet        bool
	showEvidence bool
	storeEnabled bool
	waiverFile   string
	rulesFile    string
}

// resolveConfiguration resolves final values from config file, profile,
// and command line flags. Precedence: config < profile < explicit flag.
func resolveConfiguration(cfg *config.Config, activeProfile *config.Profile, flags *configFlags) *finalConfiguration {
	final := &finalConfiguration{}

	final.format = "text"
	if cfg != nil && cfg.Defaults.Format != "" {
		final.format = cfg.Defaults.Format
	}
	if activeProfile != nil && activeProfile.Format != "" {
		final.format = activeProfile.Format
	}
	if isFlagSet("format") && flags.format != "" {
		final.format = flags.format
	}

	final.severity = "all"
	if cfg != nil && cfg.Defaults.Severity != "" {
		final.severity = cfg.Defaults.Severity
	}
	if activeProfile != nil && activeProfile.Severity != "" {
		final.severity = activeProfile.Severity
	}
	if isFlagSet("severity") && flags.severity != "" {
		final.severity = flags.severity
	}

	final.verbose = false
	if cfg != nil {
		final.verbose = cfg.Defaults.Verbose
	}
	if activeProfile != nil {
		final.verbose = activeProfile.Verbose
	}
	if isFlagSet("verbose") {
		final.verbose = flags.verbose
	}

	final.debug = false
	if cfg != nil {
		final.debug = cfg.Defaults.Debug
	}
	if activeProfile != nil {
		final.debug = activeProfile.Debug
	}
	if isFlagSet("debug") {
		final.debug = flags.debug
	}

	final.noColor = false
	if cfg != nil {
		final.noColor = cfg.Defaults.NoColor
	}
	if activeProfile != nil {
		final.noColor = activeProfile.NoColor
	}
	if isFlagSet("no-color") {
		final.noColor = flags.noColor
	}

	final.quiet = false
	if cfg != nil {
		final.quiet = cfg.Defaults.Quiet
	}
	if activeProfile != nil {
		final.quiet = activeProfile.Quiet
	}
	if isFlagSet("quiet") {
		final.quiet = flags.quiet
	}

	final.showEvidence = false
	if cfg != nil {
		final.showEvidence = cfg.Defaults.ShowEvidence
	}
	if activeProfile != nil {
		final.showEvidence = activeProfile.ShowEvidence
	}
	if isFlagSet("show-evidence") {
		final.showEvidence = flags.showEvidence
	}

	final.storeEnabled = false
	if cfg != nil {
		final.storeEnabled = cfg.Defaults.Store
	}
	if isFlagSet("store") {
		final.storeEnabled = flags.storeEnabled
	}

	final.waiverFile = ""
	if cfg != nil && cfg.Waivers.File != "" {
		final.waiverFile = cfg.Waivers.File
	}
	if isFlagSet("waiver-file") && flags.waiverFile != "" {
		final.waiverFile = flags.waiverFile
	}

	final.rulesFile = ""
	if cfg != nil && cfg.Extraction.RulesFile != "" {
		final.rulesFile = cfg.Extraction.RulesFile
	}
	if isFlagSet("rules") && flags.rulesFile != "" {
		final.rulesFile = flags.rulesFile
	}

	return final
}

// handleProfiles handles profile listing and selection.
func handleProfiles(cfg *config.Config, listProfiles bool, profileName string) *config.Profile {
	if listProfiles {
		profiles := cfg.ListProfiles()
		if len(profiles) == 0 {
			fmt.Println("No profiles defined.")
		} else {
			fmt.Println("Available profiles:")
			for _, name := range profiles {
				profile := cfg.GetProfile(name)
				if profile != nil && profile.Description != "" {
					fmt.Printf("  - %s: %s\n", name, profile.Description)
				} else {
					fmt.Printf("  - %s\n", name)
				}
			}
		}
		os.Exit(exitClean)
	}

	if profileName == "" {
		return nil
	}
	activeProfile := cfg.GetProfile(profileName)
	if activeProfile == nil {
		fmt.Fprintf(os.Stderr, "Error: Profile '%s' not found in config file\n", profileName)
		fmt.Fprintf(os.Stderr, "Use -list-profiles to see available profiles\n")
		os.Exit(exitError)
	}
	return activeProfile
}

func main() {
	approvedPath := flag.String("approved", "", "Path to the approved credit summary / term sheet")
	executedPath := flag.String("executed", "", "Path to the executed agreement (required unless -web)")
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	profileName := flag.String("profile", "", "Profile name to use from config file")
	listProfiles := flag.Bool("list-profiles", false, "List available profiles in config file")
	rulesFile := flag.String("rules", "", "Path to custom term catalog file (YAML)")
	outputFormat := flag.String("format", "", "Output format: text, json, csv, yaml, xlsx (default: text)")
	outputFile := flag.String("output", "", "Path to output file (if not specified, output to stdout)")
	severityLevels := flag.String("severity", "", "Severity levels to display: high, warn, info, or combinations like 'high,warn'")
	verbose := flag.Bool("verbose", false, "Display detailed evidence for each issue")
	debug := flag.Bool("debug", false, "Enable debug logging of extraction and validation flow")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	quiet := flag.Bool("quiet", false, "Suppress progress output (useful for scripts and CI)")
	showEvidence := flag.Bool("show-evidence", false, "Include evidence snippets in the term grid")
	waiverFile := flag.String("waiver-file", "", "Path to waiver configuration file (default: .docconform-waivers.yaml)")
	showWaived := flag.Bool("show-waived", false, "Include waived issues in output with their rule details")
	generateWaivers := flag.Bool("generate-waivers", false, "Generate waiver rules for all issues (disabled by default)")
	storeEnabled := flag.Bool("store", false, "Persist the review and its results to the SQLite store")
	verifyTerm := flag.String("verify-term", "", "Verify a single term in the executed document and exit")
	expectValue := flag.String("expect", "", "Expected value for -verify-term")
	webMode := flag.Bool("web", false, "Start the review API server instead of a CLI run")
	webPort := flag.String("port", "8080", "Port for the API server (default: 8080, only used with -web)")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")

	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Auto-disable color in non-interactive environments.
	isInteractive := term.IsTerminal(int(os.Stderr.Fd()))
	if !isInteractive || *quiet || os.Getenv("CI") != "" {
		*noColor = true
	}

	cfg := loadConfiguration(*configFile)
	activeProfile := handleProfiles(cfg, *listProfiles, *profileName)
	finalConfig := resolveConfiguration(cfg, activeProfile, &configFlags{
		format:       *outputFormat,
		severity:     *severityLevels,
		verbose:      *verbose,
		debug:        *debug,
		noColor:      *noColor,
		quiet:        *quiet,
		showEvidence: *showEvidence,
		storeEnabled: *storeEnabled,
		waiverFile:   *waiverFile,
		rulesFile:    *rulesFile,
	})

	if os.Getenv("DOCCONFORM_DEBUG") != "" {
		finalConfig.debug = true
	}

	if *showHelp {
		runHelp(finalConfig.noColor, flag.Args())
		return
	}

	logger := logging.New(finalConfig.debug)

	var catalog []terms.Rule
	if finalConfig.rulesFile != "" {
		var err error
		catalog, err = terms.LoadCatalog(finalConfig.rulesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid rules file: %v\n", err)
			os.Exit(exitError)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *webMode {
		if err := runWeb(ctx, cfg, catalog, *webPort, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		return
	}

	if *executedPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -executed is required\n")
		fmt.Fprintf(os.Stderr, "Use -help for usage information\n")
		os.Exit(exitError)
	}

	engine, err := review.BuildEngine(cfg, catalog, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	if *verifyTerm != "" {
		os.Exit(runVerify(ctx, engine, *executedPath, *verifyTerm, *expectValue))
	}

	os.Exit(runReview(ctx, cfg, engine, finalConfig, runOptions{
		approvedPath:    *approvedPath,
		executedPath:    *executedPath,
		outputFile:      *outputFile,
		showWaived:      *showWaived,
		generateWaivers: *generateWaivers || cfg.Waivers.AutoGenerate,
		quiet:           finalConfig.quiet || !isInteractive,
	}, logger))
}

type runOptions struct {
	approvedPath    string
	executedPath    string
	outputFile      string
	showWaived      bool
	generateWaivers bool
	quiet           bool
}

// runReview executes the full reconciliation pipeline and renders the
// report. Returns the process exit code.
func runReview(ctx context.Context, cfg *config.Config, engine *review.Engine, finalConfig *finalConfiguration, opts runOptions, logger *slog.Logger) int {
	if _, exists := report.Get(finalConfig.format); !exists {
		fmt.Fprintf(os.Stderr, "Error: Unsupported output format '%s'\n", finalConfig.format)
		fmt.Fprintf(os.Stderr, "Use one of: %s\n", strings.Join(report.List(), ", "))
		return exitError
	}

	rev := review.NewReview(filepath.Base(opts.executedPath), baseOrEmpty(opts.approvedPath))
	rev.ExecutedFilePath = opts.executedPath
	rev.TermSheetFilePath = opts.approvedPath

	if !opts.quiet {
		if opts.approvedPath != "" {
			fmt.Fprintf(os.Stderr, "Reconciling %s against %s...\n", rev.ExecutedFileName, rev.TermSheetFileName)
		} else {
			fmt.Fprintf(os.Stderr, "Extracting terms from %s...\n", rev.ExecutedFileName)
		}
	}

	result, err := engine.Process(ctx, rev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	// Apply waivers before reporting and gating.
	manager := waivers.NewManager(finalConfig.waiverFile)
	active, waivedIssues := manager.FilterIssues(result.Issues)

	var waived []reconcile.WaivedIssue
	if opts.showWaived {
		for _, issue := range waivedIssues {
			if ok, rule := manager.IsWaived(issue); ok {
				waived = append(waived, reconcile.WaivedIssue{
					Issue:      issue,
					WaivedBy:   rule.ID,
					RuleReason: rule.Reason,
					ExpiresAt:  rule.ExpiresAt,
				})
			}
		}
	}
	if len(waivedIssues) > 0 && !opts.quiet {
		fmt.Fprintf(os.Stderr, "Waived %d issues based on waiver rules", len(waivedIssues))
		if !opts.showWaived {
			fmt.Fprintf(os.Stderr, " (use -show-waived to see them)")
		}
		fmt.Fprintf(os.Stderr, "\n")
	}

	if opts.generateWaivers {
		if len(result.Issues) > 0 {
			reason := "Auto-generated waiver rule (disabled by default)"
			if err := manager.GenerateWaiverRules(result.Issues, reason, false); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Failed to generate waiver rules: %v\n", err)
			} else if !opts.quiet {
				fmt.Fprintf(os.Stderr, "Updated waiver rules in %s (new rules are disabled by default)\n", manager.ConfigPath())
			}
		} else if !opts.quiet {
			fmt.Fprintf(os.Stderr, "No issues to generate waiver rules for\n")
		}
	}

	if finalConfig.storeEnabled {
		if err := persistReview(ctx, cfg, rev, result); err != nil {
			logger.Error("failed to persist review", "error", err)
			fmt.Fprintf(os.Stderr, "Warning: Failed to persist review: %v\n", err)
		} else if !opts.quiet {
			fmt.Fprintf(os.Stderr, "Review %s persisted\n", rev.ID)
		}
	}

	data := report.FromResult(rev, result)
	data.Issues = active
	data.Waived = waived

	options := report.Options{
		SeverityFilter: report.ParseSeverityLevels(finalConfig.severity),
		Verbose:        finalConfig.verbose,
		NoColor:        finalConfig.noColor,
		ShowEvidence:   finalConfig.showEvidence,
	}

	output, err := report.Export(finalConfig.format, data, options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting results: %v\n", err)
		return exitError
	}

	if opts.outputFile != "" {
		if err := writeOutputFile(opts.outputFile, output); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
	} else {
		fmt.Println(output)
	}

	if reconcile.HasSeverity(active, reconcile.SeverityHigh) {
		return exitHighIssues
	}
	return exitClean
}

// runVerify re-verifies a single term against the executed document.
func runVerify(ctx context.Context, engine *review.Engine, path, key, expected string) int {
	doc, err := engine.Reader().Read(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	pages := make([]terms.Page, len(doc.Pages))
	for i, p := range doc.Pages {
		pages[i] = terms.Page{Number: p.PageNumber, Text: p.Text}
	}

	term := engine.Extractor().VerifyTerm(pages, key)
	if term == nil {
		fmt.Printf("Term '%s' not found in %s\n", key, doc.Filename)
		return exitHighIssues
	}

	fmt.Printf("Term:       %s (%s)\n", term.Key, term.Label)
	fmt.Printf("Value:      %s\n", term.Value)
	fmt.Printf("Confidence: %.2f\n", term.Confidence)
	fmt.Printf("Evidence:   %s [%s]\n", term.EvidenceText, term.EvidenceLocation)

	if expected != "" {
		if strings.EqualFold(strings.TrimSpace(term.Value), strings.TrimSpace(expected)) {
			fmt.Printf("Expected:   %s (MATCH)\n", expected)
		} else {
			fmt.Printf("Expected:   %s (MISMATCH)\n", expected)
			return exitHighIssues
		}
	}
	return exitClean
}

// runWeb wires the store, engine and handler, then serves until the
// context is cancelled.
func runWeb(ctx context.Context, cfg *config.Config, catalog []terms.Rule, portFlag string, logger *slog.Logger) error {
	if !isFlagSet("port") && cfg.Web.Port > 0 {
		portFlag = strconv.Itoa(cfg.Web.Port)
	}
	port, err := web.ValidatePort(portFlag)
	if err != nil {
		return err
	}
	port, err = web.FindAvailablePort(port, isFlagSet("port"), logger)
	if err != nil {
		return fmt.Errorf("%w\nTry a different port with -port <number>", err)
	}

	engine, err := review.BuildEngine(cfg, catalog, logger)
	if err != nil {
		return err
	}

	s, err := store.Open(store.Options{
		Path:          cfg.Store.Path,
		BusyTimeoutMS: cfg.Store.BusyTimeoutMS,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	handler := web.NewHandler(web.HandlerOptions{
		Store:       s,
		Engine:      engine,
		Reader:      engine.Reader(),
		Extractor:   engine.Extractor(),
		Logger:      logger,
		Metrics:     web.NewMetrics(),
		UploadDir:   filepath.Join(cfg.Web.DataDir, "uploads"),
		MaxUploadMB: cfg.Web.MaxUploadMB,
	})

	return web.NewServer(handler, port, logger).Start(ctx)
}

// runHelp dispatches the help topics.
func runHelp(noColor bool, args []string) {
	helpSystem := help.NewSystem(noColor)
	if len(args) == 0 {
		helpSystem.ShowGeneralHelp()
		return
	}
	switch strings.ToLower(args[0]) {
	case "terms":
		helpSystem.ShowTermsHelp()
	case "formats":
		helpSystem.ShowFormatsHelp()
	default:
		if !helpSystem.ShowTermHelp(args[0]) {
			os.Exit(exitError)
		}
	}
}

func persistReview(ctx context.Context, cfg *config.Config, rev *review.Review, result *review.Result) error {
	s, err := store.Open(store.Options{
		Path:          cfg.Store.Path,
		BusyTimeoutMS: cfg.Store.BusyTimeoutMS,
		Logger:        logging.Discard(),
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.CreateReview(ctx, rev); err != nil {
		return err
	}
	if err := s.AppendAudit(ctx, review.NewUploadEvent(rev, "")); err != nil {
		return err
	}
	return s.SaveResult(ctx, rev, result)
}

func writeOutputFile(path, content string) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return errors.New("path traversal not allowed in output path")
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(cleanPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}

func baseOrEmpty(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// isFlagSet checks if a flag was explicitly set on the command line.
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
