package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish your public key to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := unlock()
			if err != nil {
				return err
			}
			if err := a.Register(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s with %s\n", a.Self.UserID, cfg.Relay.URL)
			return nil
		},
	}
	return cmd
}
