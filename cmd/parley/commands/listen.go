package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listenCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Answer key exchanges and print incoming messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := unlock()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening as %s on %s\n", a.Self.UserID, cfg.Relay.URL)
			p := printer{out: cmd.OutOrStdout(), dir: dir}
			err = a.Listen(cmd.Context(), pollInterval, p.handle)
			a.Logout()
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "where to save received files")
	return cmd
}
