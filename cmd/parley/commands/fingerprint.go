package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/crypto"
	"parley/internal/domain"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint [peer]",
		Short: "Print your identity fingerprint, or a peer's pinned one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := openWire()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				peer := domain.UserID(args[0])
				pk, err := w.Directory.LongTermPublicKey(cmd.Context(), peer)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", peer, crypto.Fingerprint(pk))
				return nil
			}

			pass, err := passphrase()
			if err != nil {
				return err
			}
			fp, err := w.Identity.FingerprintIdentity(cfg.UserID, pass)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", fp)
			return nil
		},
	}
	return cmd
}
