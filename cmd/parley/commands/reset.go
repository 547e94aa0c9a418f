package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/domain"
)

// resetCmd drops a peer's pinned key, e.g. after the peer rotated identities.
func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <peer>",
		Short: "Forget a peer's pinned public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := openWire()
			if err != nil {
				return err
			}
			w.Directory.Forget(domain.UserID(args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot key for %s; the next connect refetches it.\n", args[0])
			return nil
		},
	}
}
