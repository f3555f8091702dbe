package cli

import (
	"github.com/spf13/cobra"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/graphite"
	"github.com/amirimatin/eventstore-probes/pkg/stats"
	"github.com/amirimatin/eventstore-probes/pkg/streams"
)

func newMetricsGossipCmd(g *globals) *cobra.Command {
	var (
		port       int
		metricPath string
	)
	cmd := &cobra.Command{
		Use:   "metrics-gossip",
		Short: "Emit the answering node's state and checkpoints in graphite format",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.stop()

			mergeString(cmd.Flags().Changed, "metric-path", &metricPath, e.cfg.MetricPath)
			if metricPath == "" {
				metricPath = hostScheme()
			}
			prefix := graphite.Join(metricPath, e.g.identifier)
			rep := e.prober.GossipMetrics(e.ctx, e.target(portFlag(cmd, port, e.cfg)), prefix)
			return e.emit("MetricsGossip", rep.MetricsReport)
		},
	}
	cmd.Flags().IntVar(&port, "port", metricsPort, "gossip port")
	cmd.Flags().StringVar(&metricPath, "metric-path", "", "metric prefix (default <hostname>.eventstore)")
	return cmd
}

func newMetricsProjectionsCmd(g *globals) *cobra.Command {
	var (
		port   int
		scheme string
	)
	cmd := &cobra.Command{
		Use:   "metrics-projections",
		Short: "Emit every projection's status and counters in graphite format",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.stop()

			mergeString(cmd.Flags().Changed, "scheme", &scheme, e.cfg.Projections.Scheme)
			if scheme == "" {
				scheme = graphite.ClusterScheme(e.g.clusterDNS)
			}
			prefix := graphite.Join(scheme, e.g.identifier)
			rep := e.prober.ProjectionMetrics(e.ctx, e.target(portFlag(cmd, port, e.cfg)), prefix)
			return e.emit("MetricsProjections", rep.MetricsReport)
		},
	}
	cmd.Flags().IntVar(&port, "port", metricsPort, "http api port")
	cmd.Flags().StringVar(&scheme, "scheme", "", "metric prefix (default <first cluster dns label>.eventstore)")
	return cmd
}

func newMetricsStatsCmd(g *globals) *cobra.Command {
	var (
		port                    int
		user, password          string
		procScheme, queueScheme string
	)
	cmd := &cobra.Command{
		Use:   "metrics-stats",
		Short: "Emit process and queue metrics from the node's $stats stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.stop()

			changed := cmd.Flags().Changed
			mergeString(changed, "auth-user", &user, e.cfg.Auth.User)
			mergeString(changed, "auth-password", &password, e.cfg.Auth.Password)
			mergeString(changed, "proc-scheme", &procScheme, e.cfg.Stats.ProcScheme)
			mergeString(changed, "queue-scheme", &queueScheme, e.cfg.Stats.QueueScheme)
			if procScheme == "" {
				procScheme = hostScheme()
			}
			if queueScheme == "" {
				queueScheme = graphite.ClusterScheme(e.g.clusterDNS)
			}
			if user != "" {
				e.client.UseBasicAuth(user, password)
			}
			opts := stats.Options{ProcScheme: procScheme, QueueScheme: queueScheme, Identifier: e.g.identifier}
			rep := e.prober.StatsMetrics(e.ctx, e.target(portFlag(cmd, port, e.cfg)), opts)
			return e.emit("MetricsStatsStream", rep)
		},
	}
	cmd.Flags().IntVar(&port, "port", metricsPort, "http api port")
	cmd.Flags().StringVar(&user, "auth-user", "", "basic auth user for the $stats stream")
	cmd.Flags().StringVar(&password, "auth-password", "", "basic auth password for the $stats stream")
	cmd.Flags().StringVar(&procScheme, "proc-scheme", "", "process metric prefix (default <hostname>.eventstore)")
	cmd.Flags().StringVar(&queueScheme, "queue-scheme", "", "queue metric prefix (default <first cluster dns label>.eventstore)")
	return cmd
}

func newMetricsStreamCountCmd(g *globals) *cobra.Command {
	var (
		port       int
		metricPath string
		names      []string
	)
	cmd := &cobra.Command{
		Use:   "metrics-streamcount",
		Short: "Emit the event count of each named stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.stop()

			changed := cmd.Flags().Changed
			mergeString(changed, "metric-path", &metricPath, e.cfg.MetricPath)
			mergeSlice(changed, "streams", &names, e.cfg.Streams)
			if len(names) == 0 {
				return e.finish("MetricsStreamcount", check.Unknownf("no streams configured, pass --streams or set streams in the config"))
			}
			if metricPath == "" {
				metricPath = hostScheme()
			}
			prefix := streams.Prefix(metricPath, e.g.identifier)
			rep := e.prober.StreamCounts(e.ctx, e.target(portFlag(cmd, port, e.cfg)), names, prefix)
			return e.emit("MetricsStreamcount", rep)
		},
	}
	cmd.Flags().IntVar(&port, "port", metricsPort, "http api port")
	cmd.Flags().StringVar(&metricPath, "metric-path", "", "metric prefix (default <hostname>.eventstore)")
	cmd.Flags().StringSliceVar(&names, "streams", nil, "comma-separated stream names")
	return cmd
}
