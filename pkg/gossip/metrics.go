package gossip

import (
	"time"

	"github.com/amirimatin/eventstore-probes/pkg/graphite"
)

// MemberMetrics renders the per-node gossip series for m under prefix. The
// state is ordinal-encoded and the checkpoints are passed through. Points
// are stamped with the member's own timestamp so the series follow the
// event store's clock; a member without a timestamp falls back to now.
func MemberMetrics(m ClusterMember, prefix string, now time.Time) []graphite.Metric {
	ts := m.TimeStamp.Time
	if ts.IsZero() {
		ts = now
	}
	point := func(name string, v any) graphite.Metric {
		return graphite.Metric{Path: graphite.Join(prefix, name), Value: v, Timestamp: ts}
	}
	return []graphite.Metric{
		point("state", m.State.Ordinal()),
		point("lastCommitPosition", m.LastCommitPosition),
		point("writerCheckpoint", m.WriterCheckpoint),
		point("chaserCheckpoint", m.ChaserCheckpoint),
		point("epochPosition", m.EpochPosition),
		point("epochNumber", m.EpochNumber),
	}
}
