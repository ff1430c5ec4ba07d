package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

func safetyNumberCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "safety-number <peer>",
		Short: "Print the safety number for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sn, err := appCtx.SafetyNumber(domain.PeerID(args[0]))
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), sn.Raw)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), sn.Formatted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw base64 form used by verify")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <peer> <raw-safety-number>",
		Short: "Check a safety number read out by the peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := appCtx.Verify(domain.PeerID(args[0]), args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("safety number for %s does not match", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Safety number for %s verified.\n", args[0])
			return nil
		},
	}
}
