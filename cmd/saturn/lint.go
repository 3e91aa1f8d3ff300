package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/pdl/parser"
	"mercator-hq/saturn/pkg/pdl/validator"

	pdlErrors "mercator-hq/saturn/pkg/pdl/errors"
)

var lintFlags struct {
	file   string
	dir    string
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy files",
	Long: `Validate PDL policy files for syntax and semantic errors.

The lint command parses policy files and performs comprehensive validation:
  - YAML syntax validation
  - Policy structure validation
  - Reference validation (field paths, variables, type compatibility)
  - Conflict and dead-rule analysis

Examples:
  # Lint single file
  saturn lint --file policy.yaml

  # Lint directory
  saturn lint --dir policies/

  # Strict mode (warnings as errors)
  saturn lint --file policy.yaml --strict

  # JSON output for CI/CD
  saturn lint --file policy.yaml --format json`,
	RunE: lintPolicies,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "policy file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of policy files")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	files, err := collectPolicyFiles(lintFlags.file, lintFlags.dir)
	if err != nil {
		return err
	}

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, validatePolicyFile(file))
	}

	if lintFlags.format == "json" {
		return outputJSON(results)
	}
	return outputText(results, lintFlags.strict)
}

// collectPolicyFiles resolves the --file/--dir flags into a file list.
func collectPolicyFiles(file, dir string) ([]string, error) {
	if file == "" && dir == "" {
		return nil, fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if file != "" {
		files = append(files, file)
	}
	if dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return nil, fmt.Errorf("failed to list policy files: %w", err)
			}
			files = append(files, matches...)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found")
	}
	return files, nil
}

// ValidationResult represents the validation result for a single policy file.
type ValidationResult struct {
	File     string       `json:"file"`
	PolicyID string       `json:"policy_id,omitempty"`
	Valid    bool         `json:"valid"`
	Errors   []Diagnostic `json:"errors,omitempty"`
	Warnings []Diagnostic `json:"warnings,omitempty"`
}

// Diagnostic represents a single validation error or warning.
type Diagnostic struct {
	Code       string `json:"code"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Rule       string `json:"rule,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func validatePolicyFile(path string) ValidationResult {
	result := ValidationResult{File: path, Valid: true}

	policy, err := parser.NewParser().Parse(path)
	if err != nil {
		result.Valid = false
		appendDiagnostics(&result, err)
		return result
	}
	result.PolicyID = policy.PolicyID

	diags := validator.NewValidator(nil).Validate(policy)
	if diags.Count() > 0 {
		appendDiagnostics(&result, diags)
	}
	result.Valid = !diags.HasFatal()
	return result
}

// appendDiagnostics sorts structured diagnostics into the result. Plain
// errors (unreadable file) become a single PDL_IO entry.
func appendDiagnostics(result *ValidationResult, err error) {
	var list *pdlErrors.ErrorList
	if !errors.As(err, &list) {
		var single *pdlErrors.Error
		if errors.As(err, &single) {
			list = pdlErrors.NewErrorList()
			list.Add(single)
		} else {
			result.Errors = append(result.Errors, Diagnostic{
				Code:    string(pdlErrors.CodeIO),
				Message: err.Error(),
			})
			return
		}
	}

	for _, diag := range list.Errors {
		entry := Diagnostic{
			Code:       string(diag.Code),
			Line:       diag.Location.Line,
			Column:     diag.Location.Column,
			Rule:       diag.RuleID,
			Message:    diag.Message,
			Suggestion: diag.Suggestion,
		}
		if diag.IsFatal() {
			result.Errors = append(result.Errors, entry)
		} else {
			result.Warnings = append(result.Warnings, entry)
		}
	}
}

func outputJSON(results []ValidationResult) error {
	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, results); err != nil {
		return err
	}
	for _, result := range results {
		if !result.Valid {
			os.Exit(1)
		}
	}
	return nil
}

func outputText(results []ValidationResult, strict bool) error {
	failed := 0
	for _, result := range results {
		switch {
		case !result.Valid:
			fmt.Printf("✗ %s\n", result.File)
		case strict && len(result.Warnings) > 0:
			fmt.Printf("✗ %s (warnings in strict mode)\n", result.File)
		default:
			fmt.Printf("✓ %s\n", result.File)
		}

		for _, diag := range result.Errors {
			printDiagnostic("error", diag)
		}
		for _, diag := range result.Warnings {
			printDiagnostic("warning", diag)
		}

		if !result.Valid || (strict && len(result.Warnings) > 0) {
			failed++
		}
	}

	fmt.Printf("\n%d file(s) checked, %d failed\n", len(results), failed)
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}

func printDiagnostic(severity string, diag Diagnostic) {
	location := ""
	if diag.Line > 0 {
		location = fmt.Sprintf(" (line %d, col %d)", diag.Line, diag.Column)
	}
	rule := ""
	if diag.Rule != "" {
		rule = fmt.Sprintf(" [rule %s]", diag.Rule)
	}
	fmt.Printf("  %s %s: %s%s%s\n", severity, diag.Code, diag.Message, rule, location)
	if diag.Suggestion != "" {
		fmt.Printf("    suggestion: %s\n", diag.Suggestion)
	}
}
