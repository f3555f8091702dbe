package probe

import (
	"context"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	"github.com/amirimatin/eventstore-probes/pkg/projections"
)

// ProjectionsReport carries the fetched listing next to the result.
type ProjectionsReport struct {
	MetricsReport
	Projections []projections.Projection
}

// CheckProjections verifies every continuous projection is running and at
// least minimum percent done.
func (p *Prober) CheckProjections(ctx context.Context, t Target, minimum float64) (rep ProjectionsReport) {
	ctx, done := p.start(ctx, "projections", t)
	defer func() { done(&rep.Result) }()

	ep, err := p.Locate(ctx, t)
	if err != nil {
		rep.Result = resolveFailed(err)
		return rep
	}
	logutil.Infof(p.logger, "checking projections api at %s", p.client.URL(ep.Address, ep.Port, "/projections/continuous"))
	list, err := p.client.Projections(ctx, ep.Address, ep.Port, "continuous")
	if err != nil {
		rep.Result = unreachable(p.client.URL(ep.Address, ep.Port, "/projections/continuous"), "check api", err, p.logger)
		return rep
	}
	rep.Projections = list
	rep.Result = projections.Evaluate(list, minimum)
	if rep.Result.Status == check.OK {
		rep.Result.Message = "projections api at " + ep.Address + " reports all projections are running and up to date"
	}
	return rep
}

// ProjectionMetrics renders the series of every projection, continuous or
// not, stamped with the time of reading.
func (p *Prober) ProjectionMetrics(ctx context.Context, t Target, prefix string) (rep ProjectionsReport) {
	ctx, done := p.start(ctx, "projections-metrics", t)
	defer func() { done(&rep.Result) }()

	ep, err := p.Locate(ctx, t)
	if err != nil {
		rep.Result = resolveFailed(err)
		return rep
	}
	list, err := p.client.Projections(ctx, ep.Address, ep.Port, "any")
	if err != nil {
		rep.Result = unreachable(p.client.URL(ep.Address, ep.Port, "/projections/any"), "check api", err, p.logger)
		return rep
	}
	rep.Projections = list
	rep.Metrics = projections.Metrics(list, prefix, p.now())
	rep.Result = check.Result{Status: check.OK}
	return rep
}
