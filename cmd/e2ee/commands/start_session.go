package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// startSessionCmd performs the handshake against a peer's pre-key bundle and
// persists the new session. send does this on its own for a first message.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish a secure session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.PeerID(args[0])
			sn, err := appCtx.StartSession(cmd.Context(), peer)
			if err != nil {
				return fmt.Errorf("starting session with %q: %w", peer, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session created with %s.\nSafety number: %s\n", peer, sn.Formatted)
			return nil
		},
	}
}
