package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// history: print the locally kept conversation with a peer.
func historyCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "history <peer>",
		Short: "Show messages exchanged with a peer on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.PeerID(args[0])
			if clear {
				if err := appCtx.ClearHistory(cmd.Context(), peer); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "History with %s cleared.\n", peer)
				return nil
			}
			entries, err := appCtx.History(cmd.Context(), peer)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No messages with %s.\n", peer)
				return nil
			}
			for _, e := range entries {
				who := string(peer)
				if e.Direction == domain.DirectionOut {
					who = "me"
				}
				fmt.Fprintf(out, "%s [%s] %s\n", e.Timestamp.Local().Format(time.DateTime), who, e.Plaintext)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "forget the history instead of printing it")
	return cmd
}

func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List peers with local history, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := appCtx.Conversations(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.Peer, c.UpdatedAt.Local().Format(time.DateTime), c.LastMessage)
			}
			return nil
		},
	}
}
