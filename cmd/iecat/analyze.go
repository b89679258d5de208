package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fintalk/iecat/internal/cli"
	"github.com/fintalk/iecat/internal/engine"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Categorize a combined ledger and compare income with expense",
		Long: `Read one JSON object whose keys are prefixed with their document type,
for example {"income:급여": "3,000,000", "expense:식비": "600,000"}, then
categorize both halves and print the surplus and saving ratio.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().Bool("json", false, "Print the analysis as JSON")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	raw, err := readDocument(args[0])
	if err != nil {
		return err
	}

	rt, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	analysis, err := engine.NewAnalyzer(rt.categorizer, slog.Default()).Analyze(ctx, raw)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, analysis)
	}

	if err := cli.RenderBreakdown(out, analysis.Income); err != nil {
		return err
	}
	if err := cli.RenderBreakdown(out, analysis.Expense); err != nil {
		return err
	}
	return cli.RenderSummary(out, analysis.Summary)
}
