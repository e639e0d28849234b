package main

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var (
		user   string
		input  string
		format string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert items from a file into the store for one user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			items, err := readItemsFile(input, format)
			if err != nil {
				return err
			}

			p, err := loadProfile()
			if err != nil {
				return err
			}
			storeInstance, err := openStore(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer storeInstance.Close()

			for _, item := range items {
				stored, err := toStoreItem(user, item)
				if err != nil {
					return err
				}
				if _, err := storeInstance.UpsertItem(cmd.Context(), stored); err != nil {
					return errors.Wrapf(err, "upsert item %s", item.ID)
				}
			}
			slog.Info("items imported", slog.String("user", user), slog.Int("count", len(items)))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d items for %s\n", len(items), user)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&user, "user", "u", "", "owner of the imported items")
	flags.StringVarP(&input, "input", "i", "", `item file (.json, .yaml or "-" for stdin)`)
	flags.StringVar(&format, "format", "", "input format: json or yaml (default from extension)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
