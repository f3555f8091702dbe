package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/gossip"
	"github.com/amirimatin/eventstore-probes/pkg/probe"
	"github.com/amirimatin/eventstore-probes/pkg/projections"
)

func newCheckGossipCmd(g *globals) *cobra.Command {
	var (
		port          int
		expectedNodes int
		format        string
	)
	cmd := &cobra.Command{
		Use:   "check-gossip",
		Short: "Check cluster size, liveness, the master and member states from gossip",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.stop()

			changed := cmd.Flags().Changed
			mergeInt(changed, "expected-nodes", &expectedNodes, e.cfg.Gossip.ExpectedNodes)
			mergeString(changed, "format", &format, e.cfg.Gossip.Format)
			f, err := gossip.ParseFormat(format)
			if err != nil {
				return &ExitError{Code: check.Unknown.ExitCode(), Message: err.Error()}
			}

			rep := e.prober.CheckGossip(e.ctx, e.target(portFlag(cmd, port, e.cfg)), probe.GossipOptions{ExpectedNodes: expectedNodes, Format: f})
			return e.finish("CheckGossip", rep.Result)
		},
	}
	cmd.Flags().IntVar(&port, "port", checkPort, "gossip port")
	cmd.Flags().IntVar(&expectedNodes, "expected-nodes", 4, "cluster size when DNS discovery is off")
	cmd.Flags().StringVar(&format, "format", string(gossip.FormatXML), "gossip document format: xml|json")
	return cmd
}

func newCheckProjectionsCmd(g *globals) *cobra.Command {
	var (
		port    int
		minimum float64
	)
	cmd := &cobra.Command{
		Use:   "check-projections",
		Short: "Check every continuous projection is running and caught up",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.stop()

			mergeFloat(cmd.Flags().Changed, "progress-minimum", &minimum, e.cfg.Projections.ProgressMinimum)
			rep := e.prober.CheckProjections(e.ctx, e.target(portFlag(cmd, port, e.cfg)), minimum)
			return e.finish("CheckProjections", rep.Result)
		},
	}
	cmd.Flags().IntVar(&port, "port", checkPort, "http api port")
	cmd.Flags().Float64Var(&minimum, "progress-minimum", projections.DefaultProgressMinimum, "minimum acceptable progress percentage")
	return cmd
}

func newResolveCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print which local address is this node inside the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.stop()

			res, err := buildResolver(&e.g, e.logger)
			if err != nil {
				return &ExitError{Code: check.Critical.ExitCode(), Message: err.Error()}
			}
			id, err := res.Resolve(e.ctx, e.g.clusterDNS)
			if err != nil {
				return e.finish("Resolve", check.Criticalf("%v", err))
			}
			enc := json.NewEncoder(e.out)
			enc.SetIndent("", "  ")
			return enc.Encode(id)
		},
	}
	return cmd
}
