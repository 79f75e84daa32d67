package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veilfi-wallet/pkg/storage/migrations"
	"veilfi-wallet/pkg/storage/postgres"
)

func (a *app) migrateCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres migrations to DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := migrations.Files()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if list {
				for _, f := range files {
					fmt.Fprintln(out, f)
				}
				return nil
			}

			if a.cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			pool, err := postgres.NewPool(cmd.Context(), a.cfg.PostgresDSN())
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrations.RunPostgresMigrations(cmd.Context(), pool)
			if err != nil {
				return err
			}
			for _, f := range applied {
				fmt.Fprintln(out, "applied", f)
			}
			fmt.Fprintf(out, "Applied %d of %d migrations\n", len(applied), len(files))
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "only list the embedded migrations")
	return cmd
}
