package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func bundleCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Print the public pre-key bundle as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := appCtx.Prekeys.PublicBundle(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "one-time pre-keys to include (0 for the default)")
	return cmd
}
