package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// send <peer> <message...>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.PeerID(args[0])
			if err := appCtx.Send(cmd.Context(), peer, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}
