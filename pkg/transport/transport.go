package transport

import (
	"context"

	"github.com/amirimatin/eventstore-probes/pkg/gossip"
	"github.com/amirimatin/eventstore-probes/pkg/projections"
	"github.com/amirimatin/eventstore-probes/pkg/stats"
	"github.com/amirimatin/eventstore-probes/pkg/streams"
)

// Client is the read-only view of a node's HTTP API that probes depend on.
// httpjson.Client is the production implementation.
type Client interface {
	URL(addr string, port int, path string) string
	Gossip(ctx context.Context, addr string, port int, f gossip.Format) (gossip.Snapshot, error)
	Projections(ctx context.Context, addr string, port int, kind string) ([]projections.Projection, error)
	StatsFeed(ctx context.Context, addr string, port int) (stats.Feed, error)
	StatsEntry(ctx context.Context, entryURL string) (map[string]any, error)
	Streams(addr string, port int) streams.Fetcher
}

// HealthSetter publishes per-service serving status (gRPC health).
type HealthSetter interface {
	SetServing(service string, serving bool)
}
