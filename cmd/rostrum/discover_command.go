package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rostrum/internal/ipc"
)

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run a discovery sweep across enabled sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Discover(days)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				for _, source := range resp.PerSource {
					if source.Error != "" {
						fmt.Fprintf(out, "%s: failed (%s)\n", source.Source, source.Error)
						continue
					}
					fmt.Fprintf(out, "%s: %d new of %d found\n", source.Source, source.New, source.Found)
				}
				fmt.Fprintf(out, "Discovered %d new videos (%d total found)\n", resp.TotalNew, resp.TotalFound)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Scan window in trailing days (default: configured lookback)")
	return cmd
}
