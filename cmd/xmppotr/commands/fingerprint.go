package commands

import (
	"fmt"

	"github.com/opd-ai/xmppotr/logging"
	"github.com/opd-ai/xmppotr/otr"
	"github.com/spf13/cobra"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the local OTR key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := keyStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			key, err := otr.LoadOrCreateKey(store, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", cfg.Account.JID, logging.Fingerprint(key.PublicKey.Fingerprint()))
			return nil
		},
	}
	return cmd
}
