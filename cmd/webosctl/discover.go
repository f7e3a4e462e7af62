package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-webos/internal/discovery/ssdp"
)

func newDiscoverCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find televisions on the local network",
		Long: `discover sends SSDP probes for the webOS second-screen service and
lists every television that answers before --timeout expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()

			f := c.newFinder(ssdp.ConfigFromConfig(c.cfg.WebOS.Discovery))
			if err := f.Start(ctx); err != nil {
				return fmt.Errorf("starting discovery: %w", err)
			}
			<-ctx.Done()
			f.Stop()

			devices := f.Devices()
			sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}
			if len(devices) == 0 {
				fmt.Fprintln(out, "No televisions found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tADDRESS\tNAME\tMODEL")
			for _, d := range devices {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Address, d.FriendlyName, d.ModelName)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print devices as JSON")
	return cmd
}
