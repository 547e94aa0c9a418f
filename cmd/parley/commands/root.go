package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"parley/internal/app"
	"parley/internal/observability"
)

// pollInterval is how often connect and listen poll the relay.
const pollInterval = 500 * time.Millisecond

var (
	configFile string
	v          *viper.Viper
	cfg        app.Config
	logger     zerolog.Logger
	wire       *app.Wire
)

func Execute() error {
	v = app.NewViper()

	root := &cobra.Command{
		Use:          "parley",
		Short:        "Authenticated end-to-end encrypted messaging CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = app.LoadConfig(v, configFile)
			if err != nil {
				return err
			}
			logger, err = observability.NewLogger("parley", observability.LogOptions{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
			})
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default <home>/config.yaml)")
	flags.String("home", "", "data dir (default ~/.parley)")
	flags.StringP("user", "u", "", "your user id")
	flags.StringP("passphrase", "p", "", "passphrase protecting your identity key (or PARLEY_PASSPHRASE)")
	flags.String("relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	for key, flag := range map[string]string{
		"home":       "home",
		"user_id":    "user",
		"passphrase": "passphrase",
		"relay.url":  "relay",
		"log.level":  "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		configCmd(),
		connectCmd(),
		sendCmd(),
		sendFileCmd(),
		listenCmd(),
		resetCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}

// openWire builds the dependency graph on first use.
func openWire() (*app.Wire, error) {
	if wire != nil {
		return wire, nil
	}
	if cfg.UserID == "" {
		return nil, errUserRequired
	}
	w, err := app.NewWire(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	wire = w
	return wire, nil
}

// unlock opens the wire and unlocks the identity with the passphrase.
func unlock() (*app.App, error) {
	w, err := openWire()
	if err != nil {
		return nil, err
	}
	pass, err := passphrase()
	if err != nil {
		return nil, err
	}
	return w.Unlock(pass)
}

func passphrase() (string, error) {
	p := v.GetString("passphrase")
	if p == "" {
		return "", errPassphraseRequired
	}
	return p, nil
}
