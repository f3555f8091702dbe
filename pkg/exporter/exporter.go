// Package exporter runs the gossip and projection probes on an interval and
// publishes their outcome as Prometheus gauges, gRPC health statuses and a
// JSON status table.
package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/gossip"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	obsmetrics "github.com/amirimatin/eventstore-probes/pkg/observability/metrics"
	"github.com/amirimatin/eventstore-probes/pkg/probe"
	"github.com/amirimatin/eventstore-probes/pkg/projections"
	"github.com/amirimatin/eventstore-probes/pkg/transport"
)

// Health service names.
const (
	ServiceGossip      = "eventstore.gossip"
	ServiceProjections = "eventstore.projections"
	ServiceOverall     = ""
)

// Probe names used in the status table and the probe_status gauge.
const (
	ProbeGossip        = "gossip"
	ProbeGossipMetrics = "gossip-metrics"
	ProbeProjections   = "projections"
)

const DefaultInterval = 30 * time.Second

var ErrNoResults = errors.New("exporter: no probe cycle has completed yet")

// Options configures the exporter.
type Options struct {
	Target          probe.Target
	Gossip          probe.GossipOptions
	ProgressMinimum float64
	Interval        time.Duration
}

// Status is one row of the status table.
type Status struct {
	Probe     string       `json:"probe"`
	Result    check.Result `json:"result"`
	Endpoint  string       `json:"endpoint,omitempty"`
	CheckedAt time.Time    `json:"checkedAt"`
}

// Exporter owns the probe cycle. Probes stay stateless; only the last
// result of each is remembered.
type Exporter struct {
	prober *probe.Prober
	health transport.HealthSetter
	opts   Options
	logger *log.Logger
	now    func() time.Time

	mu   sync.RWMutex
	last map[string]Status
}

// New builds an exporter. health may be nil when no gRPC listener is set up.
func New(p *probe.Prober, health transport.HealthSetter, o Options, logger *log.Logger) (*Exporter, error) {
	if p == nil {
		return nil, errors.New("exporter: nil prober")
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.ProgressMinimum == 0 {
		o.ProgressMinimum = projections.DefaultProgressMinimum
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Exporter{prober: p, health: health, opts: o, logger: logger, now: time.Now, last: map[string]Status{}}, nil
}

// Run performs a cycle right away and then one per interval until ctx is
// canceled.
func (e *Exporter) Run(ctx context.Context) error {
	logutil.Infof(e.logger, "exporter: probing every %s", e.opts.Interval)
	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()
	for {
		if err := e.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logutil.Warnf(e.logger, "exporter: cycle: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce runs every probe concurrently and publishes the results.
func (e *Exporter) RunOnce(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep := e.prober.CheckGossip(gctx, e.opts.Target, e.opts.Gossip)
		e.observeGossip(rep)
		e.record(ProbeGossip, rep.Result, endpoint(rep.Endpoint))
		return nil
	})
	g.Go(func() error {
		rep := e.prober.GossipMetrics(gctx, e.opts.Target, "")
		if rep.Self != nil {
			observeCheckpoints(*rep.Self)
		}
		e.record(ProbeGossipMetrics, rep.Result, "")
		return nil
	})
	g.Go(func() error {
		rep := e.prober.ProjectionMetrics(gctx, e.opts.Target, "")
		res := rep.Result
		if res.Status == check.OK {
			observeProjections(rep.Projections)
			res = projections.Evaluate(continuous(rep.Projections), e.opts.ProgressMinimum)
		}
		e.record(ProbeProjections, res, "")
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	e.publishHealth()
	return ctx.Err()
}

func (e *Exporter) record(name string, r check.Result, ep string) {
	obsmetrics.ProbeStatus.WithLabelValues(name).Set(float64(r.Status))
	if r.Status != check.OK {
		logutil.Warnf(e.logger, "exporter: %s", r.Line(name))
	} else {
		logutil.Debugf(e.logger, "exporter: %s", r.Line(name))
	}
	e.mu.Lock()
	e.last[name] = Status{Probe: name, Result: r, Endpoint: ep, CheckedAt: e.now()}
	e.mu.Unlock()
}

func (e *Exporter) observeGossip(rep probe.GossipReport) {
	obsmetrics.ClusterExpectedMembers.Set(float64(rep.Expected))
	if rep.Snapshot == nil {
		return
	}
	snap := rep.Snapshot
	obsmetrics.ClusterMembers.Set(float64(len(snap.Members)))
	obsmetrics.ClusterAliveMembers.Set(float64(snap.AliveCount()))
	obsmetrics.MemberState.Reset()
	for _, m := range snap.Members {
		obsmetrics.MemberState.WithLabelValues(m.InstanceID, m.HTTPAddr()).Set(float64(m.State.Ordinal()))
	}
}

func observeCheckpoints(m gossip.ClusterMember) {
	obsmetrics.NodeCheckpoint.WithLabelValues("lastCommitPosition").Set(float64(m.LastCommitPosition))
	obsmetrics.NodeCheckpoint.WithLabelValues("writerCheckpoint").Set(float64(m.WriterCheckpoint))
	obsmetrics.NodeCheckpoint.WithLabelValues("chaserCheckpoint").Set(float64(m.ChaserCheckpoint))
	obsmetrics.NodeCheckpoint.WithLabelValues("epochPosition").Set(float64(m.EpochPosition))
	obsmetrics.NodeCheckpoint.WithLabelValues("epochNumber").Set(float64(m.EpochNumber))
}

func observeProjections(list []projections.Projection) {
	obsmetrics.ProjectionStatus.Reset()
	obsmetrics.ProjectionProgress.Reset()
	obsmetrics.ProjectionEventsProcessed.Reset()
	for _, p := range list {
		obsmetrics.ProjectionStatus.WithLabelValues(p.Name).Set(float64(projections.EncodeStatus(p.Status)))
		obsmetrics.ProjectionProgress.WithLabelValues(p.Name).Set(p.Progress)
		obsmetrics.ProjectionEventsProcessed.WithLabelValues(p.Name).Set(p.EventsProcessedAfterRestart)
	}
}

// continuous keeps the projections the check-projections probe looks at.
func continuous(list []projections.Projection) []projections.Projection {
	out := make([]projections.Projection, 0, len(list))
	for _, p := range list {
		if strings.EqualFold(p.Mode, "Continuous") {
			out = append(out, p)
		}
	}
	return out
}

// publishHealth maps the table onto the health services. A service serves
// while its probes are OK or WARNING.
func (e *Exporter) publishHealth() {
	if e.health == nil {
		return
	}
	e.mu.RLock()
	gossipUp := serving(e.last, ProbeGossip, ProbeGossipMetrics)
	projUp := serving(e.last, ProbeProjections)
	e.mu.RUnlock()
	e.health.SetServing(ServiceGossip, gossipUp)
	e.health.SetServing(ServiceProjections, projUp)
	e.health.SetServing(ServiceOverall, gossipUp && projUp)
}

func serving(last map[string]Status, names ...string) bool {
	for _, n := range names {
		st, ok := last[n]
		if !ok || st.Result.Status > check.Warning {
			return false
		}
	}
	return true
}

// Snapshot returns the status table ordered by probe name.
func (e *Exporter) Snapshot() []Status {
	e.mu.RLock()
	out := make([]Status, 0, len(e.last))
	for _, st := range e.last {
		out = append(out, st)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Probe < out[j].Probe })
	return out
}

// StatusJSON renders the status table; it fits httpjson.StatusFunc.
func (e *Exporter) StatusJSON(context.Context) ([]byte, error) {
	return json.Marshal(e.Snapshot())
}

// Healthy fails until a cycle has run and while any probe is CRITICAL or
// UNKNOWN; it fits httpjson.HealthFunc.
func (e *Exporter) Healthy(context.Context) error {
	rows := e.Snapshot()
	if len(rows) == 0 {
		return ErrNoResults
	}
	var bad []string
	for _, st := range rows {
		if st.Result.Status > check.Warning {
			bad = append(bad, st.Result.Line(st.Probe))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("exporter: %s", strings.Join(bad, "; "))
	}
	return nil
}

func endpoint(ep probe.Endpoint) string {
	if ep.Address == "" {
		return ""
	}
	return ep.String()
}
