package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}
			storeInstance, err := openStore(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer storeInstance.Close()

			schemaVersion, err := storeInstance.GetSchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("database migrated", slog.String("driver", p.Driver), slog.String("schema_version", schemaVersion))
			return nil
		},
	}
}
