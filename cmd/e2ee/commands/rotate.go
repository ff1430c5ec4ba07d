package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rotateCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace the signed pre-key and one-time pre-keys",
		Long: "Replace the signed pre-key and one-time pre-keys. Existing sessions keep working;\n" +
			"a first message still in flight toward the old keys can no longer be accepted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := appCtx.Rotate(cmd.Context(), publish)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed pre-key %s", b.SignedPreKeyID)
			if publish {
				fmt.Fprint(cmd.OutOrStdout(), " published")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", true, "publish the new bundle to the relay")
	return cmd
}
