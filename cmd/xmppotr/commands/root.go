package commands

import (
	"fmt"

	"github.com/opd-ai/xmppotr/config"
	"github.com/opd-ai/xmppotr/logging"
	"github.com/opd-ai/xmppotr/otr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configDir string
	logLevel  string

	// dir is the resolved config directory.
	dir string
)

// Execute runs the root command.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "xmppotr",
		Short:        "XMPP chat client with OTR encryption",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if dir, err = config.Dir(configDir); err != nil {
				return err
			}
			if logLevel != "" {
				logrus.SetLevel(logging.ParseLevel(logLevel))
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configDir, "config", "", "config dir (default $XDG_CONFIG_HOME/xmppotr)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	root.AddCommand(connectCmd(), fingerprintCmd(), configCmd())
	return root
}

// loadConfig reads and validates config.yaml and applies its log level
// unless --log-level was given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("%w (run \"xmppotr config init\" to create one)", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logLevel == "" {
		logrus.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}
	return cfg, nil
}

// keyStore returns the store for OTR files. A configured passphrase
// encrypts them; otherwise they are plain files in the config directory.
func keyStore(cfg *config.Config) (otr.KeyStore, func(), error) {
	resolver := config.DirResolver{Dir: dir}
	if cfg.OTR.KeyPassphrase == "" {
		return otr.NewFileKeyStore(resolver.Path), func() {}, nil
	}
	ks, err := otr.NewEncryptedKeyStore(resolver.Path, []byte(cfg.OTR.KeyPassphrase))
	if err != nil {
		return nil, nil, err
	}
	return ks, func() { ks.Close() }, nil
}
