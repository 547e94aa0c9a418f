package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"parley/internal/domain"
)

// connectCmd runs a key exchange and then relays stdin lines to the peer
// while printing whatever arrives.
func connectCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "connect <peer>",
		Short: "Establish a secure session with a peer and chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.UserID(args[0])
			p := printer{out: cmd.OutOrStdout(), dir: dir}
			a, err := connected(cmd, peer, p)
			if err != nil {
				return err
			}
			defer a.Logout()
			fmt.Fprintf(cmd.OutOrStdout(), "* chatting with %s; type to send, Ctrl-D to quit\n", peer)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- a.Listen(ctx, pollInterval, p.handle) }()

			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				if err := a.Messages.Send(ctx, peer, []byte(line)); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "! send failed: %v\n", err)
				}
			}
			cancel()
			if err := <-done; err != nil {
				return err
			}
			return sc.Err()
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "where to save received files")
	return cmd
}
