package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/exporter"
	"github.com/amirimatin/eventstore-probes/pkg/gossip"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	obsmetrics "github.com/amirimatin/eventstore-probes/pkg/observability/metrics"
	"github.com/amirimatin/eventstore-probes/pkg/probe"
	"github.com/amirimatin/eventstore-probes/pkg/projections"
	tlsx "github.com/amirimatin/eventstore-probes/pkg/security/tlsconfig"
	"github.com/amirimatin/eventstore-probes/pkg/transport"
	mgmtgrpc "github.com/amirimatin/eventstore-probes/pkg/transport/grpc"
	httpjson "github.com/amirimatin/eventstore-probes/pkg/transport/httpjson"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		listen, grpcListen string
		interval           time.Duration
		port               int
		expectedNodes      int
		format             string
		minimum            float64
		listenTLS          bool
		breakerThreshold   uint32
		breakerCooldown    time.Duration
		rateLimit          float64
		rateBurst          int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Probe periodically and export Prometheus metrics, /status and gRPC health",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.stop()

			changed := cmd.Flags().Changed
			mergeString(changed, "listen", &listen, e.cfg.Serve.Listen)
			mergeString(changed, "grpc-listen", &grpcListen, e.cfg.Serve.GRPCListen)
			if e.cfg.Serve.Interval > 0 && !changed("interval") {
				interval = e.cfg.Serve.Interval
			}
			mergeInt(changed, "expected-nodes", &expectedNodes, e.cfg.Gossip.ExpectedNodes)
			mergeString(changed, "format", &format, e.cfg.Gossip.Format)
			mergeFloat(changed, "progress-minimum", &minimum, e.cfg.Projections.ProgressMinimum)
			if e.cfg.Serve.BreakerThreshold > 0 && !changed("breaker-threshold") {
				breakerThreshold = e.cfg.Serve.BreakerThreshold
			}
			if e.cfg.Serve.BreakerCooldown > 0 && !changed("breaker-cooldown") {
				breakerCooldown = e.cfg.Serve.BreakerCooldown
			}
			mergeFloat(changed, "rate-limit", &rateLimit, e.cfg.Serve.RateLimit)
			mergeInt(changed, "rate-burst", &rateBurst, e.cfg.Serve.RateBurst)
			e.client.UseBreaker(breakerThreshold, breakerCooldown)
			f, err := gossip.ParseFormat(format)
			if err != nil {
				return &ExitError{Code: check.Unknown.ExitCode(), Message: err.Error()}
			}

			srvTLS, err := tlsx.Options{
				Enable:   listenTLS,
				CAFile:   e.g.tls.CAFile,
				CertFile: e.g.tls.CertFile,
				KeyFile:  e.g.tls.KeyFile,
			}.Server()
			if err != nil {
				return &ExitError{Code: check.Unknown.ExitCode(), Message: fmt.Sprintf("tls server config: %v", err)}
			}

			var health transport.HealthSetter
			if grpcListen != "" {
				gs := mgmtgrpc.NewServer(grpcListen, exporter.ServiceGossip, exporter.ServiceProjections)
				if srvTLS != nil {
					gs.UseTLS(srvTLS)
				}
				if err := gs.Start(e.ctx); err != nil {
					return fmt.Errorf("grpc listen %s: %w", grpcListen, err)
				}
				logutil.Infof(e.logger, "grpc health listening on %s", gs.Addr())
				health = gs
			}

			ex, err := exporter.New(e.prober, health, exporter.Options{
				Target:          e.target(portFlag(cmd, port, e.cfg)),
				Gossip:          probe.GossipOptions{ExpectedNodes: expectedNodes, Format: f},
				ProgressMinimum: minimum,
				Interval:        interval,
			}, e.logger)
			if err != nil {
				return err
			}

			obsmetrics.Register()
			hs := httpjson.NewServer(listen, e.logger).UseRateLimit(rateLimit, rateBurst)
			if srvTLS != nil {
				hs.UseTLS(srvTLS)
			}
			if err := hs.Start(e.ctx, ex.StatusJSON, ex.Healthy); err != nil {
				return fmt.Errorf("http listen %s: %w", listen, err)
			}
			return ex.Run(e.ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":9810", "HTTP address for /metrics, /healthz and /status")
	cmd.Flags().StringVar(&grpcListen, "grpc-listen", "", "gRPC health address (empty disables)")
	cmd.Flags().DurationVar(&interval, "interval", exporter.DefaultInterval, "time between probe cycles")
	cmd.Flags().IntVar(&port, "port", checkPort, "event store http port")
	cmd.Flags().IntVar(&expectedNodes, "expected-nodes", 4, "cluster size when DNS discovery is off")
	cmd.Flags().StringVar(&format, "format", string(gossip.FormatXML), "gossip document format: xml|json")
	cmd.Flags().Float64Var(&minimum, "progress-minimum", projections.DefaultProgressMinimum, "minimum acceptable projection progress percentage")
	cmd.Flags().Uint32Var(&breakerThreshold, "breaker-threshold", 5, "consecutive failed requests before probing pauses (0 disables)")
	cmd.Flags().DurationVar(&breakerCooldown, "breaker-cooldown", 30*time.Second, "pause before probing a failing node again")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 10, "requests per second served over HTTP (0 disables)")
	cmd.Flags().IntVar(&rateBurst, "rate-burst", 20, "HTTP request burst")
	cmd.Flags().BoolVar(&listenTLS, "listen-tls", false, "serve HTTP and gRPC over TLS using --tls-cert/--tls-key (--tls-ca requires client certs)")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var (
		addr, service string
		timeout       time.Duration
		tlsOpts       tlsx.Options
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running exporter's gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tlsOpts.Client()
			if err != nil {
				return &ExitError{Code: check.Unknown.ExitCode(), Message: fmt.Sprintf("tls client config: %v", err)}
			}
			st, err := mgmtgrpc.Check(context.Background(), addr, service, tc, timeout)
			if err != nil {
				r := check.Criticalf("health check of %s at %s failed: %v", serviceName(service), addr, err)
				fmt.Fprintln(cmd.OutOrStdout(), r.Line("Health"))
				return exitFor(r)
			}
			r := check.Okf("%s is %s", serviceName(service), st)
			if st != healthpb.HealthCheckResponse_SERVING {
				r = check.Criticalf("%s is %s", serviceName(service), st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.Line("Health"))
			return exitFor(r)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9811", "exporter gRPC address (host:port)")
	cmd.Flags().StringVar(&service, "service", exporter.ServiceOverall, "service to query, empty for overall")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	cmd.Flags().BoolVar(&tlsOpts.Enable, "tls", false, "connect over TLS")
	cmd.Flags().StringVar(&tlsOpts.CAFile, "ca", "", "path to CA cert (PEM)")
	return cmd
}

func serviceName(s string) string {
	if s == "" {
		return "overall"
	}
	return s
}
