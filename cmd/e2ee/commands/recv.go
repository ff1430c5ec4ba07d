package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// recv: fetch and decrypt queued messages for this device.
func recvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := appCtx.Receive(cmd.Context())
			out := cmd.OutOrStdout()
			for _, m := range msgs {
				ts := m.ReceivedAt.Local().Format(time.TimeOnly)
				if m.Err != nil {
					fmt.Fprintf(out, "%s [%s] <undecryptable: %v>\n", ts, m.From, m.Err)
					continue
				}
				fmt.Fprintf(out, "%s [%s] %s\n", ts, m.From, m.Plaintext)
			}
			return err
		},
	}
}
