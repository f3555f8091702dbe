// Package probe ties target resolution, the event store client and the
// evaluators together. Every probe returns a check.Result; none of them
// exits the process.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/graphite"
	"github.com/amirimatin/eventstore-probes/pkg/identity"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
	obsmetrics "github.com/amirimatin/eventstore-probes/pkg/observability/metrics"
	"github.com/amirimatin/eventstore-probes/pkg/observability/tracing"
	"github.com/amirimatin/eventstore-probes/pkg/transport"
)

var ErrNoLocator = errors.New("probe: dns discovery requested without an identity resolver")

// Locator finds this node inside a cluster; *identity.Resolver implements it.
type Locator interface {
	Resolve(ctx context.Context, clusterDNS string) (identity.Identity, error)
}

// Target says where a probe should look. With DiscoverViaDNS the address
// comes from the identity resolver and Address is ignored.
type Target struct {
	DiscoverViaDNS bool
	ClusterDNS     string
	Address        string
	Port           int
}

// Endpoint is a resolved Target.
type Endpoint struct {
	Address string
	Port    int
	// ExpectedNodes is the cluster size seen in DNS, 0 without discovery.
	ExpectedNodes int
	Discovered    bool
}

// MetricsReport is the outcome of a metrics probe: a status plus the
// series collected before any failure.
type MetricsReport struct {
	Result  check.Result
	Metrics []graphite.Metric
}

// Prober runs probes against one event store node at a time.
type Prober struct {
	client  transport.Client
	locator Locator
	logger  *log.Logger
	now     func() time.Time
}

// New builds a Prober. locator may be nil when DNS discovery is never used.
func New(client transport.Client, locator Locator, logger *log.Logger) (*Prober, error) {
	if client == nil {
		return nil, errors.New("probe: nil client")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Prober{client: client, locator: locator, logger: logger, now: time.Now}, nil
}

// Locate turns t into a concrete endpoint.
func (p *Prober) Locate(ctx context.Context, t Target) (Endpoint, error) {
	if !t.DiscoverViaDNS {
		return Endpoint{Address: t.Address, Port: t.Port}, nil
	}
	if p.locator == nil {
		return Endpoint{}, ErrNoLocator
	}
	id, err := p.locator.Resolve(ctx, t.ClusterDNS)
	if err != nil {
		return Endpoint{}, err
	}
	logutil.Debugf(p.logger, "probe: %s resolved to %s (%d nodes)", t.ClusterDNS, id.Address, id.ExpectedNodes)
	return Endpoint{Address: id.Address, Port: t.Port, ExpectedNodes: id.ExpectedNodes, Discovered: true}, nil
}

// start opens the probe span and returns the function that records the
// run once the result is known.
func (p *Prober) start(ctx context.Context, name string, t Target) (context.Context, func(*check.Result)) {
	began := time.Now()
	ctx, end := tracing.StartSpan(ctx, "probe."+name,
		attribute.String("es.cluster_dns", t.ClusterDNS),
		attribute.Bool("es.discover_via_dns", t.DiscoverViaDNS),
		attribute.Int("es.port", t.Port),
	)
	return ctx, func(r *check.Result) {
		if r.Status != check.OK {
			tracing.Fail(ctx, errors.New(r.Message))
		}
		end()
		obsmetrics.ProbeRuns.WithLabelValues(name, r.Status.String()).Inc()
		obsmetrics.ProbeDuration.WithLabelValues(name).Observe(time.Since(began).Seconds())
	}
}

func unreachable(url, purpose string, err error, logger *log.Logger) check.Result {
	logutil.Errorf(logger, "probe: %s: %v", url, err)
	return check.Criticalf("Could not connect to %s to %s, has event store fallen over on this node?", url, purpose)
}

func resolveFailed(err error) check.Result {
	return check.Criticalf("%v", err)
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%d", e.Address, e.Port) }
