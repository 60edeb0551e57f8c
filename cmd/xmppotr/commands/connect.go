package commands

import (
	"io"
	"os"
	"os/signal"

	"github.com/opd-ai/xmppotr"
	"github.com/opd-ai/xmppotr/config"
	"github.com/opd-ai/xmppotr/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func connectCmd() *cobra.Command {
	var showLogs bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Log in and start an interactive chat console",
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

			opts := xmppotr.NewOptions()
			opts.EnableOTR = cfg.OTR.Enabled
			opts.KeyStore = store
			opts.Resolver = config.DirResolver{Dir: dir}.Path

			client, err := xmppotr.New(xmppotr.SettingsFromConfig(cfg), opts)
			if err != nil {
				return err
			}

			con := newConsole(client, cmd.OutOrStdout())
			con.attach(client)

			if showLogs {
				logrus.SetOutput(io.Discard)
				logrus.AddHook(logging.NewSinkHook(con.log, logrus.GetLevel()))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if err := client.Run(ctx); err != nil {
				return err
			}
			go con.run(cmd.InOrStdin())
			return client.Wait()
		},
	}
	cmd.Flags().BoolVar(&showLogs, "logs", false, "show log lines in the console instead of stderr")
	return cmd
}
