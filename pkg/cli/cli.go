// Package cli wires the probes into cobra subcommands. Commands never call
// os.Exit; a non-OK outcome is returned as an *ExitError carrying the exit
// code for main to use.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/config"
	"github.com/amirimatin/eventstore-probes/pkg/discovery"
	"github.com/amirimatin/eventstore-probes/pkg/discovery/dns"
	"github.com/amirimatin/eventstore-probes/pkg/discovery/local"
	"github.com/amirimatin/eventstore-probes/pkg/discovery/static"
	"github.com/amirimatin/eventstore-probes/pkg/graphite"
	"github.com/amirimatin/eventstore-probes/pkg/identity"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	tracing "github.com/amirimatin/eventstore-probes/pkg/observability/tracing"
	"github.com/amirimatin/eventstore-probes/pkg/probe"
	tlsx "github.com/amirimatin/eventstore-probes/pkg/security/tlsconfig"
	httpjson "github.com/amirimatin/eventstore-probes/pkg/transport/httpjson"
)

const (
	checkPort   = 2113
	metricsPort = 2114
)

// ExitError asks the caller to exit with Code. Message, when non-empty,
// has not been printed yet.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Message
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return check.Unknown.ExitCode()
}

// globals are the flags every subcommand shares.
type globals struct {
	configPath     string
	discoverViaDNS bool
	clusterDNS     string
	address        string
	dnsServers     []string
	localAddrs     []string
	timeout        time.Duration
	verbose        bool
	trace          bool
	identifier     string
	tls            tlsx.Options
}

// env is what a subcommand runs with once flags and config are merged.
type env struct {
	out    io.Writer
	logger *log.Logger
	g      globals
	cfg    *config.Config
	client *httpjson.Client
	prober *probe.Prober
	ctx    context.Context
	stop   func()
}

// NewRootCommand builds the esprobe command tree writing check and metric
// lines to stdout and diagnostics to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "esprobe",
		Short:         "Health checks and metrics for event store clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML config file (ESPROBE_* variables override it)")
	pf.BoolVar(&g.discoverViaDNS, "discover-via-dns", true, "find this node by matching local addresses against the cluster DNS name")
	pf.StringVar(&g.clusterDNS, "cluster-dns", "localhost", "DNS name listing every cluster node")
	pf.StringVar(&g.address, "address", "localhost", "event store address when DNS discovery is off")
	pf.StringSliceVar(&g.dnsServers, "dns-server", nil, "query these nameservers directly instead of the system resolver")
	pf.StringSliceVar(&g.localAddrs, "local-addrs", nil, "use these addresses instead of enumerating interfaces")
	pf.DurationVar(&g.timeout, "timeout", 5*time.Second, "per-request timeout")
	pf.BoolVar(&g.verbose, "verbose", false, "log debug output to stderr")
	pf.BoolVar(&g.trace, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
	pf.StringVar(&g.identifier, "identifier", "", "optional tag inserted after the metric scheme")
	pf.BoolVar(&g.tls.Enable, "tls-enable", false, "use https towards the event store")
	pf.StringVar(&g.tls.CAFile, "tls-ca", "", "path to CA cert (PEM)")
	pf.StringVar(&g.tls.CertFile, "tls-cert", "", "path to client certificate (PEM)")
	pf.StringVar(&g.tls.KeyFile, "tls-key", "", "path to client private key (PEM)")
	pf.BoolVar(&g.tls.InsecureSkipVerify, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
	pf.StringVar(&g.tls.ServerName, "tls-server-name", "", "expected server name (for TLS validation)")

	root.AddCommand(
		newCheckGossipCmd(g),
		newCheckProjectionsCmd(g),
		newMetricsGossipCmd(g),
		newMetricsProjectionsCmd(g),
		newMetricsStatsCmd(g),
		newMetricsStreamCountCmd(g),
		newResolveCmd(g),
		newServeCmd(g),
		newHealthCmd(),
	)
	return root
}

// setup loads the config file and environment, lets explicitly set flags
// win over them and builds the prober.
func setup(cmd *cobra.Command, g *globals) (*env, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, &ExitError{Code: check.Unknown.ExitCode(), Message: err.Error()}
	}
	changed := cmd.Flags().Changed
	if cfg.DiscoverViaDNS != nil && !changed("discover-via-dns") {
		g.discoverViaDNS = *cfg.DiscoverViaDNS
	}
	mergeString(changed, "cluster-dns", &g.clusterDNS, cfg.ClusterDNS)
	mergeString(changed, "address", &g.address, cfg.Address)
	mergeSlice(changed, "dns-server", &g.dnsServers, cfg.DNSServers)
	mergeSlice(changed, "local-addrs", &g.localAddrs, cfg.LocalAddrs)
	if cfg.Timeout > 0 && !changed("timeout") {
		g.timeout = cfg.Timeout
	}
	if cfg.Verbose && !changed("verbose") {
		g.verbose = true
	}
	if cfg.Trace && !changed("trace") {
		g.trace = true
	}
	mergeString(changed, "identifier", &g.identifier, cfg.Identifier)
	mergeTLS(changed, &g.tls, cfg.TLS)

	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	logutil.SetVerbose(g.verbose)

	e := &env{out: cmd.OutOrStdout(), logger: logger, g: *g, cfg: cfg}
	ctx, cancel := signalContext()
	e.ctx, e.stop = ctx, cancel
	if g.trace {
		shutdown, err := tracing.Setup(true)
		if err != nil {
			logutil.Warnf(logger, "tracing setup error: %v", err)
		} else {
			e.stop = func() {
				_ = shutdown(context.Background())
				cancel()
			}
		}
	}

	e.client = httpjson.NewClient(g.timeout).WithLogger(logger)
	if g.tls.Enable {
		tc, err := g.tls.Client()
		if err != nil {
			e.stop()
			return nil, &ExitError{Code: check.Unknown.ExitCode(), Message: fmt.Sprintf("tls client config: %v", err)}
		}
		e.client.UseTLS(tc)
	}

	var locator probe.Locator
	if g.discoverViaDNS {
		res, err := buildResolver(g, logger)
		if err != nil {
			e.stop()
			return nil, &ExitError{Code: check.Critical.ExitCode(), Message: err.Error()}
		}
		locator = res
	}
	e.prober, err = probe.New(e.client, locator, logger)
	if err != nil {
		e.stop()
		return nil, err
	}
	return e, nil
}

func buildResolver(g *globals, logger *log.Logger) (*identity.Resolver, error) {
	var (
		resolver discovery.Resolver
		lister   discovery.InterfaceLister = local.New()
		err      error
	)
	if len(g.dnsServers) > 0 {
		resolver, err = dns.NewQuerier(dns.QueryOptions{Servers: g.dnsServers, Timeout: g.timeout, Logger: logger})
		if err != nil {
			return nil, err
		}
	} else {
		resolver = dns.New(dns.Options{Logger: logger})
	}
	if len(g.localAddrs) > 0 {
		lister = static.New(g.localAddrs...)
	}
	return identity.New(resolver, lister, logger)
}

func (e *env) target(port int) probe.Target {
	return probe.Target{
		DiscoverViaDNS: e.g.discoverViaDNS,
		ClusterDNS:     e.g.clusterDNS,
		Address:        e.g.address,
		Port:           port,
	}
}

// finish prints a check line and turns a non-OK status into an ExitError.
func (e *env) finish(name string, r check.Result) error {
	fmt.Fprintln(e.out, r.Line(name))
	return exitFor(r)
}

// emit writes metric lines, then reports a failure the way finish does.
func (e *env) emit(name string, rep probe.MetricsReport) error {
	w := graphite.NewWriter(e.out)
	if err := w.Write(rep.Metrics...); err != nil {
		return &ExitError{Code: check.Unknown.ExitCode(), Message: fmt.Sprintf("write metrics: %v", err)}
	}
	if rep.Result.Status == check.OK {
		return nil
	}
	return e.finish(name, rep.Result)
}

func exitFor(r check.Result) error {
	if r.Status == check.OK {
		return nil
	}
	return &ExitError{Code: r.Status.ExitCode()}
}

// portFlag resolves the subcommand's --port against the config file.
func portFlag(cmd *cobra.Command, port int, cfg *config.Config) int {
	if cfg.Port > 0 && !cmd.Flags().Changed("port") {
		return cfg.Port
	}
	return port
}

func mergeString(changed func(string) bool, name string, dst *string, v string) {
	if v != "" && !changed(name) {
		*dst = v
	}
}

func mergeSlice(changed func(string) bool, name string, dst *[]string, v []string) {
	if len(v) > 0 && !changed(name) {
		*dst = v
	}
}

func mergeFloat(changed func(string) bool, name string, dst *float64, v float64) {
	if v != 0 && !changed(name) {
		*dst = v
	}
}

func mergeInt(changed func(string) bool, name string, dst *int, v int) {
	if v != 0 && !changed(name) {
		*dst = v
	}
}

func mergeTLS(changed func(string) bool, dst *tlsx.Options, v tlsx.Options) {
	if v.Enable && !changed("tls-enable") {
		dst.Enable = true
	}
	mergeString(changed, "tls-ca", &dst.CAFile, v.CAFile)
	mergeString(changed, "tls-cert", &dst.CertFile, v.CertFile)
	mergeString(changed, "tls-key", &dst.KeyFile, v.KeyFile)
	if v.InsecureSkipVerify && !changed("tls-skip-verify") {
		dst.InsecureSkipVerify = true
	}
	mergeString(changed, "tls-server-name", &dst.ServerName, v.ServerName)
}

// hostScheme is "<hostname>.eventstore", the default prefix for per-host
// metric families.
func hostScheme() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		h = "localhost"
	}
	return h + ".eventstore"
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
