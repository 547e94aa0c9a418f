package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/app"
)

func initCmd() *cobra.Command {
	var writeConfig bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := openWire()
			if err != nil {
				return err
			}
			pass, err := passphrase()
			if err != nil {
				return err
			}
			exists, err := w.Identity.Exists(cfg.UserID)
			if err != nil {
				return err
			}
			_, fp, err := w.Identity.GenerateIdentity(cfg.UserID, pass)
			if err != nil {
				return err
			}
			if exists {
				fmt.Fprintln(cmd.OutOrStdout(), "Previous identity replaced; peers must forget your old key.")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created for %s.\nFingerprint: %s\n", cfg.UserID, fp)

			if writeConfig {
				path := configFile
				if path == "" {
					path = app.ConfigFile(cfg.Home)
				}
				if err := cfg.WriteFile(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "save the effective config for later runs")
	return cmd
}
