package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/leadflow/internal/cli"
	"github.com/aretw0/leadflow/internal/compiler"
	"github.com/aretw0/leadflow/internal/validator"
	"github.com/aretw0/leadflow/pkg/actions"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/genai"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/spf13/cobra"
)

var errValidation = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate <flow-file>...",
	Short: "Check flow documents for consistency",
	Long: `Parses each flow document and reports broken references, unreachable steps,
loops without a choice, invalid action params and content warnings.
Exits with status 1 when any flow has errors.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return runValidate(cmd.OutOrStdout(), args, asJSON)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("json", false, "Print the reports as JSON")
}

type fileReport struct {
	File     string                   `json:"file"`
	Valid    bool                     `json:"valid"`
	Parse    string                   `json:"parseError,omitempty"`
	Errors   []domain.ValidationIssue `json:"errors"`
	Warnings []domain.ValidationIssue `json:"warnings"`
}

// builtinActions knows every built-in action so params are checked against their schemas.
func builtinActions() *registry.Registry {
	reg := registry.NewRegistry()
	actions.RegisterDefaults(reg, actions.Deps{
		Generator: genai.NewService(),
		Leads:     memory.NewLeadStore(),
	})
	return reg
}

func runValidate(w io.Writer, files []string, asJSON bool) error {
	parser := compiler.NewParser()
	reg := builtinActions()

	reports := make([]fileReport, 0, len(files))
	failed := false
	for _, file := range files {
		rep := fileReport{File: file, Errors: []domain.ValidationIssue{}, Warnings: []domain.ValidationIssue{}}

		flow, err := parser.ParseFile(file)
		if err != nil {
			rep.Parse = err.Error()
		} else {
			res := validator.Validate(flow,
				validator.WithActions(reg),
				validator.WithKnownVariables(cli.KnownVariables...),
			)
			rep.Valid = res.Valid()
			if res.Errors != nil {
				rep.Errors = res.Errors
			}
			if res.Warnings != nil {
				rep.Warnings = res.Warnings
			}
		}
		failed = failed || !rep.Valid
		reports = append(reports, rep)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, rep := range reports {
			printReport(w, rep)
		}
	}

	if failed {
		return errValidation
	}
	return nil
}

func printReport(w io.Writer, rep fileReport) {
	switch {
	case rep.Parse != "":
		fmt.Fprintf(w, "❌ %s\n   %s\n", rep.File, rep.Parse)
		return
	case rep.Valid:
		fmt.Fprintf(w, "✅ %s: %s\n", rep.File, validator.Summary(validator.Result{Errors: rep.Errors, Warnings: rep.Warnings}))
	default:
		fmt.Fprintf(w, "❌ %s: %s\n", rep.File, validator.Summary(validator.Result{Errors: rep.Errors, Warnings: rep.Warnings}))
	}
	for _, issue := range rep.Errors {
		fmt.Fprintf(w, "   error   %s\n", issue)
	}
	for _, issue := range rep.Warnings {
		fmt.Fprintf(w, "   warning %s\n", issue)
	}
}
