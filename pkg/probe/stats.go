package probe

import (
	"context"
	"net/url"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	"github.com/amirimatin/eventstore-probes/pkg/stats"
)

// StatsMetrics reads the newest event of the node's $stats stream and
// renders its process and queue series, stamped with the event's time.
func (p *Prober) StatsMetrics(ctx context.Context, t Target, opts stats.Options) (rep MetricsReport) {
	ctx, done := p.start(ctx, "stats", t)
	defer func() { done(&rep.Result) }()

	ep, err := p.Locate(ctx, t)
	if err != nil {
		rep.Result = resolveFailed(err)
		return rep
	}
	feed, err := p.client.StatsFeed(ctx, ep.Address, ep.Port)
	if err != nil {
		u := p.client.URL(ep.Address, ep.Port, "/streams/"+url.PathEscape(stats.StreamName(ep.Address, ep.Port)))
		rep.Result = unreachable(u, "read stats", err, p.logger)
		return rep
	}
	latest, ok := feed.Latest()
	if !ok {
		logutil.Debugf(p.logger, "probe: stats stream of %s is empty", ep)
		rep.Result = check.Result{Status: check.OK}
		return rep
	}
	logutil.Debugf(p.logger, "probe: reading stats entry %s (%s)", latest.ID, latest.Updated)
	entry, err := p.client.StatsEntry(ctx, latest.ID)
	if err != nil {
		rep.Result = unreachable(latest.ID, "read stats", err, p.logger)
		return rep
	}
	ms, err := stats.Metrics(entry, opts, latest.Updated)
	if err != nil {
		rep.Result = check.Unknownf("%v", err)
		return rep
	}
	rep.Metrics = ms
	rep.Result = check.Result{Status: check.OK}
	return rep
}
