package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-webos/internal/pairing"
	_ "github.com/nerrad567/gray-logic-webos/migrations"
)

// withKeyStore opens the bridge database named by the config file.
func (c *cli) withKeyStore(ctx context.Context, fn func(*pairing.SQLiteStore) error) error {
	db, err := database.Open(database.Config{
		Path:        c.cfg.Database.Path,
		WALMode:     c.cfg.Database.WALMode,
		BusyTimeout: c.cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly, nothing to flush

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return fn(pairing.NewSQLiteStore(db.DB))
}

func newPairedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paired",
		Short: "List televisions with a stored pairing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withKeyStore(cmd.Context(), func(store *pairing.SQLiteStore) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No paired televisions.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tADDRESS\tUPDATED")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.DeviceID, r.Address, r.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
}

func newUnpairCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "unpair DEVICE",
		Short: "Forget the stored pairing key for a television",
		Long: `unpair deletes the client key the bridge stored for DEVICE. The
television shows the pairing prompt again on the next connection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withKeyStore(cmd.Context(), func(store *pairing.SQLiteStore) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pairing key for %s deleted\n", args[0])
				return nil
			})
		},
	}
}
