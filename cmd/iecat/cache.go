package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintalk/iecat/internal/cli"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached document breakdowns",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached breakdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setupRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.categorizer.InvalidateCache(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Removed %d cached breakdowns", n)))
			return nil
		},
	})

	return cmd
}
