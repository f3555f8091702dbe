package probe

import (
	"context"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/gossip"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
)

// GossipOptions tunes CheckGossip.
type GossipOptions struct {
	// ExpectedNodes is used unless DNS discovery supplies the cluster size.
	ExpectedNodes int
	Format        gossip.Format
}

// GossipReport carries the check result plus what it was derived from.
// Snapshot is nil when the gossip document could not be fetched.
type GossipReport struct {
	Result   check.Result
	Endpoint Endpoint
	Expected int
	Snapshot *gossip.Snapshot
	Verdict  gossip.Verdict
}

// CheckGossip fetches one gossip snapshot and evaluates it.
func (p *Prober) CheckGossip(ctx context.Context, t Target, o GossipOptions) (rep GossipReport) {
	ctx, done := p.start(ctx, "gossip", t)
	defer func() { done(&rep.Result) }()

	ep, err := p.Locate(ctx, t)
	if err != nil {
		rep.Result = resolveFailed(err)
		return rep
	}
	rep.Endpoint = ep
	rep.Expected = o.ExpectedNodes
	if ep.Discovered {
		rep.Expected = ep.ExpectedNodes
	}
	if o.Format == "" {
		o.Format = gossip.FormatXML
	}

	logutil.Infof(p.logger, "checking gossip at %s", ep)
	snap, err := p.client.Gossip(ctx, ep.Address, ep.Port, o.Format)
	if err != nil {
		rep.Result = unreachable(p.client.URL(ep.Address, ep.Port, "/gossip?format="+string(o.Format)), "check gossip", err, p.logger)
		return rep
	}
	rep.Snapshot = &snap

	logutil.Debugf(p.logger, "checking for %d nodes, liveness, a single master and settled states", rep.Expected)
	rep.Verdict = gossip.Evaluate(snap, rep.Expected)
	switch rep.Verdict.Severity() {
	case gossip.SeverityOK:
		rep.Result = check.Okf("%s is gossiping with %d nodes, all nodes are alive, exactly one master node was found and all other nodes are in the 'Slave' state.", ep.Address, rep.Expected)
	case gossip.SeverityWarning:
		rep.Result = check.Warningf("%s", rep.Verdict.Message())
	default:
		rep.Result = check.Criticalf("%s", rep.Verdict.Message())
	}
	return rep
}

// GossipMetricsReport adds the member the series describe.
type GossipMetricsReport struct {
	MetricsReport
	Self *gossip.ClusterMember
}

// GossipMetrics reads the JSON gossip document and renders the series of
// the member that answered. prefix is "<metric path>[.<identifier>]".
func (p *Prober) GossipMetrics(ctx context.Context, t Target, prefix string) (rep GossipMetricsReport) {
	ctx, done := p.start(ctx, "gossip-metrics", t)
	defer func() { done(&rep.Result) }()

	ep, err := p.Locate(ctx, t)
	if err != nil {
		rep.Result = resolveFailed(err)
		return rep
	}
	snap, err := p.client.Gossip(ctx, ep.Address, ep.Port, gossip.FormatJSON)
	if err != nil {
		rep.Result = unreachable(p.client.URL(ep.Address, ep.Port, "/gossip?format=json"), "read gossip", err, p.logger)
		return rep
	}
	self, err := snap.Self()
	if err != nil {
		rep.Result = check.Unknownf("%v", err)
		return rep
	}
	rep.Self = &self
	rep.Metrics = gossip.MemberMetrics(self, prefix, p.now())
	rep.Result = check.Result{Status: check.OK}
	return rep
}
