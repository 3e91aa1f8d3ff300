package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/compiler"
	"mercator-hq/saturn/pkg/pdl/validator"
)

var compileFlags struct {
	file           string
	disasm         bool
	format         string
	conflictPolicy string
	noFolding      bool
	noDCE          bool
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a policy file to bytecode",
	Long: `Compile a PDL policy file and report the result.

The compile command runs the full pipeline (parse, validate, optimize,
emit) and prints a summary of the compiled program. Use --disasm to
inspect the emitted bytecode instruction by instruction.

Examples:
  # Compile and summarize
  saturn compile --file policy.yaml

  # Show the bytecode listing
  saturn compile --file policy.yaml --disasm

  # Machine-readable output
  saturn compile --file policy.yaml --format json`,
	RunE: compilePolicy,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileFlags.file, "file", "f", "", "policy file to compile (required)")
	compileCmd.Flags().BoolVar(&compileFlags.disasm, "disasm", false, "print the bytecode disassembly")
	compileCmd.Flags().StringVar(&compileFlags.format, "format", "text", "output format: text, json")
	compileCmd.Flags().StringVar(&compileFlags.conflictPolicy, "conflict-policy", "warn", "overlapping rule handling: warn, reject")
	compileCmd.Flags().BoolVar(&compileFlags.noFolding, "no-constant-folding", false, "disable the constant folding pass")
	compileCmd.Flags().BoolVar(&compileFlags.noDCE, "no-dead-code-elimination", false, "disable the dead rule elimination pass")
	compileCmd.MarkFlagRequired("file")
}

// CompileReport summarizes a compiled policy for CLI output.
type CompileReport struct {
	File           string       `json:"file"`
	PolicyID       string       `json:"policy_id"`
	Version        string       `json:"version"`
	RuleCount      int          `json:"rule_count"`
	Instructions   int          `json:"instructions"`
	ConstraintsLen int          `json:"constraints"`
	DefaultVerdict string       `json:"default_verdict"`
	SourceHash     string       `json:"source_hash"`
	Warnings       []Diagnostic `json:"warnings,omitempty"`
	Disassembly    string       `json:"disassembly,omitempty"`
}

func compilePolicy(cmd *cobra.Command, args []string) error {
	cfg := compiler.DefaultConfig()
	cfg.EnableConstantFolding = !compileFlags.noFolding
	cfg.EnableDeadCodeElimination = !compileFlags.noDCE
	switch compileFlags.conflictPolicy {
	case "warn":
		cfg.ConflictPolicy = validator.ConflictPolicyWarn
	case "reject":
		cfg.ConflictPolicy = validator.ConflictPolicyReject
	default:
		return fmt.Errorf("unknown conflict policy %q", compileFlags.conflictPolicy)
	}

	comp, err := compiler.New(cfg, nil, nil)
	if err != nil {
		return err
	}

	compiled, err := comp.CompileFile(compileFlags.file)
	if err != nil {
		return fmt.Errorf("compilation failed:\n%w", err)
	}

	report := CompileReport{
		File:           compileFlags.file,
		PolicyID:       compiled.PolicyID,
		Version:        compiled.Version,
		RuleCount:      compiled.RuleCount,
		Instructions:   len(compiled.Bytecode),
		ConstraintsLen: len(compiled.Constraints),
		DefaultVerdict: string(compiled.DefaultVerdict),
		SourceHash:     compiled.SourceHash,
	}
	for _, w := range compiled.Warnings {
		report.Warnings = append(report.Warnings, Diagnostic{
			Code:       string(w.Code),
			Line:       w.Location.Line,
			Column:     w.Location.Column,
			Rule:       w.RuleID,
			Message:    w.Message,
			Suggestion: w.Suggestion,
		})
	}
	if compileFlags.disasm {
		report.Disassembly = compiled.Disassemble()
	}

	if compileFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, report)
	}

	fmt.Printf("Compiled %s\n", report.File)
	fmt.Printf("  Policy:       %s@%s\n", report.PolicyID, report.Version)
	fmt.Printf("  Rules:        %d\n", report.RuleCount)
	fmt.Printf("  Instructions: %d\n", report.Instructions)
	fmt.Printf("  Constraints:  %d\n", report.ConstraintsLen)
	fmt.Printf("  Default:      %s\n", report.DefaultVerdict)
	fmt.Printf("  Source hash:  %s\n", report.SourceHash)
	for _, diag := range report.Warnings {
		printDiagnostic("warning", diag)
	}
	if report.Disassembly != "" {
		fmt.Printf("\n%s", report.Disassembly)
	}
	return nil
}
