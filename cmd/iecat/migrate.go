package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintalk/iecat/internal/cli"
	"github.com/fintalk/iecat/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Create or upgrade the keyword rule schema. Every other command also migrates on startup.`,
		RunE:  runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show migration status without running migrations")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	showStatus, _ := cmd.Flags().GetBool("status")
	if showStatus {
		version, err := store.SchemaVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to get schema version: %w", err)
		}

		fmt.Fprintf(out, "Driver:          %s\n", store.Driver())
		fmt.Fprintf(out, "Current version: %d\n", version)
		fmt.Fprintf(out, "Expected version: %d\n", storage.ExpectedSchemaVersion)
		if version < storage.ExpectedSchemaVersion {
			fmt.Fprintln(out, cli.FormatWarning("Migrations pending. Run 'iecat migrate' to apply."))
		} else {
			fmt.Fprintln(out, cli.FormatSuccess("Schema is up to date."))
		}
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Migrated to schema version %d", storage.ExpectedSchemaVersion)))
	return nil
}
