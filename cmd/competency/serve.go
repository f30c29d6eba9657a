package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-competency/internal/app"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API on HTTP_ADDR.

Course runs are handed to Temporal when TEMPORAL_ADDRESS is set and run
inline otherwise.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), app.Options{Temporal: true}, func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal worker for course runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), app.Options{Temporal: true}, func(a *app.App) error {
				return a.RunWorker(cmd.Context())
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), app.Options{SkipMigrate: true}, func(a *app.App) error {
				if err := a.Migrate(); err != nil {
					return err
				}
				a.Log.Info("Schema migrated")
				return nil
			})
		},
	}
}
