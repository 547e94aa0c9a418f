package commands

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"parley/internal/app"
	"parley/internal/domain"
)

// connected unlocks the identity and runs a key exchange with peer.
func connected(cmd *cobra.Command, peer domain.UserID, p printer) (*app.App, error) {
	a, err := unlock()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Connecting to %s...\n", peer)
	if err := a.Connect(cmd.Context(), peer, pollInterval, p.handle); err != nil {
		return nil, fmt.Errorf("connecting to %q: %w", peer, err)
	}
	return a, nil
}

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.UserID(args[0])
			a, err := connected(cmd, peer, printer{out: cmd.OutOrStdout(), dir: "."})
			if err != nil {
				return err
			}
			defer a.Logout()
			if err := a.Messages.Send(cmd.Context(), peer, []byte(args[1])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}

func sendFileCmd() *cobra.Command {
	var fileType string
	cmd := &cobra.Command{
		Use:   "send-file <peer> <path>",
		Short: "Encrypt and send a file to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, path := domain.UserID(args[0]), args[1]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if fileType == "" {
				fileType = mime.TypeByExtension(filepath.Ext(path))
			}
			if fileType == "" {
				fileType = "application/octet-stream"
			}

			a, err := connected(cmd, peer, printer{out: cmd.OutOrStdout(), dir: "."})
			if err != nil {
				return err
			}
			defer a.Logout()
			id, err := a.Messages.SendFile(cmd.Context(), peer, filepath.Base(path), fileType, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s (%d bytes) as %s\n", filepath.Base(path), len(data), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&fileType, "type", "", "MIME type (default from extension)")
	return cmd
}
