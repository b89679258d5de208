package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/fintalk/iecat/internal/cli"
	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
	"github.com/fintalk/iecat/internal/storage"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and edit the keyword rule table",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesLookupCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesSeedCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List keyword rules, most used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setupRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			var rules []model.KeywordRule
			if raw, _ := cmd.Flags().GetString("type"); raw != "" {
				txType, err := model.ParseTransactionType(raw)
				if err != nil {
					return common.NewUserError("invalid --type", err)
				}
				rules, err = rt.store.ListByType(ctx, txType)
				if err != nil {
					return err
				}
			} else if rules, err = rt.store.ListAll(ctx); err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), rules)
			}
			return cli.RenderRules(cmd.OutOrStdout(), rules)
		},
	}

	cmd.Flags().String("type", "", "Only list rules of this type (income, expense, total_income, total_expense)")
	cmd.Flags().Bool("json", false, "Print the rules as JSON")

	return cmd
}

func rulesLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <label>",
		Short: "Show the rule an exact label resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setupRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			rule, err := rt.store.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			return cli.RenderRules(cmd.OutOrStdout(), []model.KeywordRule{*rule})
		},
	}
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Register a keyword under an explicit type and category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			raw, _ := cmd.Flags().GetString("type")
			txType, err := model.ParseTransactionType(raw)
			if err != nil {
				return common.NewUserError("invalid --type", err)
			}
			category, _ := cmd.Flags().GetString("category")

			rt, err := setupRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			rule, err := rt.store.Put(ctx, args[0], txType, category)
			if err != nil {
				return err
			}
			if _, err := rt.categorizer.InvalidateCache(ctx); err != nil {
				common.LogError(ctx, err, "Failed to invalidate cached breakdowns", common.Fields{"keyword": rule.Keyword})
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved %q as %s (id %d)", rule.Keyword, rule.Type, rule.ID)))
			return nil
		},
	}

	cmd.Flags().String("type", "", "Rule type (income, expense, total_income, total_expense)")
	cmd.Flags().String("category", "", "Category within the type's taxonomy")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a keyword rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return common.NewUserError(fmt.Sprintf("invalid rule id %q", args[0]), err)
			}

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				ok, err := cli.Confirm(ctx, os.Stdin, cmd.OutOrStdout(), fmt.Sprintf("Delete rule %d?", id))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing deleted."))
					return nil
				}
			}

			rt, err := setupRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.store.Delete(ctx, id); err != nil {
				return err
			}
			if _, err := rt.categorizer.InvalidateCache(ctx); err != nil {
				common.LogError(ctx, err, "Failed to invalidate cached breakdowns", common.Fields{"rule_id": id})
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func rulesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the built-in keyword table, keeping existing rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			rt, err := setupRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			seeds := storage.DefaultSeeds()
			bar := progressbar.NewOptions(len(seeds),
				progressbar.OptionSetWriter(out),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Seeding rules[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
			)

			added := 0
			for _, seed := range seeds {
				n, err := rt.store.Seed(ctx, []model.SeedRule{seed})
				if err != nil {
					return fmt.Errorf("failed to seed %q: %w", pattern.Normalize(seed.Keyword), err)
				}
				added += n
				_ = bar.Add(1)
			}

			common.LogInfo(ctx, "Seeded keyword rules", common.Fields{"added": added, "total": len(seeds)})
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Added %d of %d built-in rules", added, len(seeds))))
			return nil
		},
	}
}
