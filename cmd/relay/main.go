package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"parley/internal/observability"
	"parley/internal/relay"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		listen    string
		perSecond float64
		burst     int
		maxQueue  int
		maxBody   int64
		logLevel  string
		logFormat string
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Store-and-forward relay for parley peers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := observability.NewLogger("parley-relay", observability.LogOptions{
				Level:  logLevel,
				Format: logFormat,
			})
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			srv := relay.NewServer(relay.ServerOptions{
				Logger:   log,
				Metrics:  observability.NewMetrics(reg),
				Gatherer: reg,
				Rate:     rate.Limit(perSecond),
				Burst:    burst,
				MaxBody:  maxBody,
				MaxQueue: maxQueue,
			})

			hs := &http.Server{
				Addr:              listen,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() { errc <- hs.ListenAndServe() }()
			log.Info().Str("addr", listen).Float64("rate", perSecond).Int("burst", burst).Msg("relay listening")

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := hs.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&listen, "listen", ":8080", "listen address")
	f.Float64Var(&perSecond, "rate", float64(relay.DefaultRate), "envelopes per second allowed per sender")
	f.IntVar(&burst, "burst", relay.DefaultBurst, "per-sender burst size")
	f.IntVar(&maxQueue, "max-queue", relay.DefaultMaxQueue, "max undelivered envelopes per recipient")
	f.Int64Var(&maxBody, "max-body", relay.DefaultMaxBody, "max request body in bytes")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	f.StringVar(&logFormat, "log-format", "json", "log format (json or console)")
	return cmd
}
