package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List output formats the gateway can produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Formats(cmd.Context())
			if err != nil {
				return wrapClientError(err, ctx.serverAddress())
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}

			rows := make([][]string, 0, len(resp.Formats))
			for _, f := range resp.Formats {
				rows = append(rows, []string{f.Extension, f.Name, f.MediaType, f.Family})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Ext", "Name", "Media type", "Family"}, rows, nil))
			fmt.Fprintf(out, "%d formats\n", len(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	return cmd
}
