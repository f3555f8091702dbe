package probe

import (
	"context"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	"github.com/amirimatin/eventstore-probes/pkg/streams"
)

// StreamCounts emits "<prefix>.<stream>.count" for every stream it could
// read and warns when any could not be.
func (p *Prober) StreamCounts(ctx context.Context, t Target, names []string, prefix string) (rep MetricsReport) {
	ctx, done := p.start(ctx, "streamcount", t)
	defer func() { done(&rep.Result) }()

	if len(names) == 0 {
		rep.Result = check.Unknownf("no streams configured")
		return rep
	}
	ep, err := p.Locate(ctx, t)
	if err != nil {
		rep.Result = resolveFailed(err)
		return rep
	}
	ms, err := streams.Count(ctx, p.client.Streams(ep.Address, ep.Port), names, prefix, p.now())
	if err != nil {
		logutil.Warnf(p.logger, "probe: %v", err)
	}
	rep.Metrics = ms
	rep.Result = streams.Result(err)
	return rep
}
