package main

import (
	"github.com/spf13/cobra"

	"github.com/fintalk/iecat/internal/cli"
	"github.com/fintalk/iecat/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file|->",
		Short: "Classify line items with the keyword rules only",
		Long: `Run the local rule pass over a JSON object of label → amount and report
each item's type, category, confidence and whether it would need the
external classifier. Nothing is sent to the model.`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("type", "", "Document type hint (income or expense)")
	cmd.Flags().Bool("json", false, "Print the result as JSON")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	items, err := readDocument(args[0])
	if err != nil {
		return err
	}

	var hint model.TransactionType
	if raw, _ := cmd.Flags().GetString("type"); raw != "" {
		if hint, err = parseDocType(raw); err != nil {
			return err
		}
	}

	rt, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	result := rt.categorizer.ClassifyBatch(ctx, items, hint)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	return cli.RenderBatch(cmd.OutOrStdout(), result)
}
