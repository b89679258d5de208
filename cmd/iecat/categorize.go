package main

import (
	"github.com/spf13/cobra"

	"github.com/fintalk/iecat/internal/cli"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize <file|->",
		Short: "Produce a category breakdown for one income or expense document",
		Args:  cobra.ExactArgs(1),
		RunE:  runCategorize,
	}

	cmd.Flags().String("type", "", "Document type (income or expense)")
	cmd.Flags().Bool("json", false, "Print the breakdown as JSON")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runCategorize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	raw, _ := cmd.Flags().GetString("type")
	docType, err := parseDocType(raw)
	if err != nil {
		return err
	}

	items, err := readDocument(args[0])
	if err != nil {
		return err
	}

	rt, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	breakdown, err := rt.categorizer.CategorizeDocument(ctx, items, docType)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), breakdown)
	}
	return cli.RenderBreakdown(cmd.OutOrStdout(), breakdown)
}
