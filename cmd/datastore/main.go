// Command datastore runs the authoritative file store: it accepts GET/POST
// transfers over the custom reliable UDP protocol and serves Prometheus
// metrics on a small side HTTP listener.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/udprelay/gateway/internal/config"
	"github.com/udprelay/gateway/internal/datastore"
	"github.com/udprelay/gateway/internal/logging"
	"github.com/udprelay/gateway/internal/metrics"
)

func main() {
	var (
		host        string
		port        int
		baseDir     string
		window      int
		timeout     time.Duration
		metricsAddr string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "datastore",
		Short: "Authoritative file store for the UDP reliable transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateHost(host); err != nil {
				return err
			}
			if err := config.ValidatePort(port); err != nil {
				return err
			}
			if err := config.ValidateDuration(timeout); err != nil {
				return err
			}
			if window != config.WindowSize {
				return fmt.Errorf("--window is fixed at %d by the wire protocol and cannot be changed", config.WindowSize)
			}

			log := logging.New("datastore", logging.ParseLevel(logLevel))
			reg := prometheus.NewRegistry()
			collectors := metrics.New(reg)

			if metricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
					log.WithField("addr", metricsAddr).Info("metrics listener starting")
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						log.WithError(err).Error("metrics listener stopped")
					}
				}()
			}

			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}

			srv := &datastore.Server{
				Host:    host,
				Port:    port,
				BaseDir: baseDir,
				Timeout: timeout,
				Metrics: collectors,
				Log:     log,
			}
			log.WithField("host", host).WithField("port", port).WithField("base-dir", baseDir).Info("datastore starting")
			return srv.Run()
		},
	}

	bindFlags(cmd.Flags(), &host, &port, &baseDir, &window, &timeout, &metricsAddr, &logLevel)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindFlags(flags *pflag.FlagSet, host *string, port *int, baseDir *string, window *int, timeout *time.Duration, metricsAddr, logLevel *string) {
	flags.StringVar(host, "host", "0.0.0.0", "address to bind the UDP listener")
	flags.IntVar(port, "port", config.DatastoreUDPPort, "UDP port to bind")
	flags.StringVar(baseDir, "base-dir", ".", "directory confining served/uploaded files")
	flags.IntVar(window, "window", config.WindowSize, "sliding window size in packets (fixed by the protocol)")
	flags.DurationVar(timeout, "timeout", config.ControlTimeout, "fixed read timeout for control/data frames")
	flags.StringVar(metricsAddr, "metrics-addr", ":9100", "address for the Prometheus metrics listener (empty disables)")
	flags.StringVar(logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
