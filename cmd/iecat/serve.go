package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fintalk/iecat/internal/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve classification and rule management over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	server := api.NewServer(api.Dependencies{
		Rules:       rt.store,
		Categorizer: rt.categorizer,
		Logger:      slog.Default(),
		Version:     version,
	})

	slog.Info("Starting HTTP server", "addr", rt.cfg.Server.Addr, "driver", rt.store.Driver())
	return server.Listen(ctx, rt.cfg.Server.Addr)
}
