package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fenwicklabs/recurdns/daemon"
	"github.com/fenwicklabs/recurdns/dnsname"
	"github.com/fenwicklabs/recurdns/resolver"
	"github.com/fenwicklabs/recurdns/telemetry"
)

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:   "recurdns",
		Short: "Recursive DNS resolver",
		Long: `A recursive DNS resolver.

Walks the delegation chain from the root servers down, following
referrals, glue, and cached state to answer a query the way an
authoritative chain would, without depending on any upstream
recursive resolver.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			telemetry.Log.SetLevel(lvl)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level; one of panic,fatal,error,warn,info,debug,trace")

	root.AddCommand(newLookupCmd(), newDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLookupCmd() *cobra.Command {
	var qtype string

	cmd := &cobra.Command{
		Use:   "lookup <name>",
		Short: "Resolve a single name and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := dns.StringToType[qtype]
			if !ok {
				return fmt.Errorf("unknown record type %q", qtype)
			}

			r := resolver.New(resolver.Config{})
			records, err := r.Resolve(cmd.Context(), dnsname.New(args[0]), t)
			if err != nil {
				return err
			}
			for _, rr := range records {
				fmt.Println(rr.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&qtype, "type", "t", "A", "record type to query")

	return cmd
}

func newDaemonCmd() *cobra.Command {
	var port int
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run as a UDP nameserver",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			r := resolver.New(resolver.Config{})

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				srv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					telemetry.Log.WithField("addr", metricsAddr).Info("serving metrics")
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						telemetry.Log.WithError(err).Error("metrics server failed")
					}
				}()
				go func() {
					<-ctx.Done()
					_ = srv.Close()
				}()
			}

			return daemon.Serve(ctx, r, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 53, "UDP port to listen on")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9153 (disabled if empty)")

	return cmd
}
