// Command proxy runs the stateless HTTP/1.x front-end: it accepts GET/POST
// over TCP and relays each request to a datastore over the custom
// reliable UDP protocol.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/udprelay/gateway/internal/config"
	"github.com/udprelay/gateway/internal/logging"
	"github.com/udprelay/gateway/internal/metrics"
	"github.com/udprelay/gateway/internal/proxy"
)

func main() {
	var (
		datastoreHost string
		datastorePort int
		listen        string
		timeout       time.Duration
		logLevel      string
	)

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "HTTP front-end for the UDP reliable transport datastore",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateHost(datastoreHost); err != nil {
				return err
			}
			if err := config.ValidatePort(datastorePort); err != nil {
				return err
			}
			if err := config.ValidateDuration(timeout); err != nil {
				return err
			}

			datastoreAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", datastoreHost, datastorePort))
			if err != nil {
				return err
			}

			log := logging.New("proxy", logging.ParseLevel(logLevel))
			reg := prometheus.NewRegistry()
			collectors := metrics.New(reg)

			handler := &proxy.Handler{
				DatastoreAddr: datastoreAddr,
				Timeout:       timeout,
				Metrics:       collectors,
				Log:           log,
			}

			log.WithField("listen", listen).WithField("datastore", datastoreAddr.String()).Info("proxy starting")
			return http.ListenAndServe(listen, proxy.NewMux(handler, reg))
		},
	}

	bindFlags(cmd.Flags(), &datastoreHost, &datastorePort, &listen, &timeout, &logLevel)
	cmd.MarkFlagRequired("datastore-host")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindFlags(flags *pflag.FlagSet, datastoreHost *string, datastorePort *int, listen *string, timeout *time.Duration, logLevel *string) {
	flags.StringVar(datastoreHost, "datastore-host", "", "datastore host/IP (required)")
	flags.IntVar(datastorePort, "datastore-port", config.DatastoreUDPPort, "datastore UDP port")
	flags.StringVar(listen, "listen", "0.0.0.0:40000", "address to bind the HTTP listener")
	flags.DurationVar(timeout, "timeout", config.ControlTimeout, "fixed read timeout for control/data frames")
	flags.StringVar(logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
