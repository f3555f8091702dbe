// Package identity works out which of this machine's addresses is "this
// node" inside an event-store cluster published under a DNS name.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/amirimatin/eventstore-probes/pkg/discovery"
	"github.com/amirimatin/eventstore-probes/pkg/discovery/local"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
)

// Identity is the outcome of a successful resolution.
type Identity struct {
	// Address is the single local address that is also a cluster member.
	Address string `json:"address"`

	// ExpectedNodes is the number of A records behind the cluster name.
	ExpectedNodes int `json:"expectedNodes"`

	LocalAddresses   []string `json:"localAddresses"`
	ClusterAddresses []string `json:"clusterAddresses"`
}

// Resolver combines a DNS capability with local interface enumeration.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	dns    discovery.Resolver
	local  discovery.InterfaceLister
	logger *log.Logger
}

// New builds a Resolver. A nil logger falls back to log.Default().
func New(dns discovery.Resolver, lister discovery.InterfaceLister, logger *log.Logger) (*Resolver, error) {
	if dns == nil {
		return nil, errors.New("identity: nil dns resolver")
	}
	if lister == nil {
		return nil, errors.New("identity: nil interface lister")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{dns: dns, local: lister, logger: logger}, nil
}

// Resolve returns the local address that appears among the cluster's A
// records, together with the cluster size. It fails with a *ResolutionError
// wrapping ErrNoClusterAddresses when the name has no A records and
// ErrNoUniqueLocalMatch when zero or several local addresses match.
func (r *Resolver) Resolve(ctx context.Context, clusterDNS string) (Identity, error) {
	localAddrs, err := local.Addresses(r.local)
	if err != nil {
		return Identity{}, err
	}
	clusterAddrs, err := r.dns.ResolveIPv4(ctx, clusterDNS)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: resolve %s: %w", clusterDNS, err)
	}
	clusterAddrs = dedupe(clusterAddrs)
	logutil.Debugf(r.logger, "identity: local=%v cluster(%s)=%v", localAddrs, clusterDNS, clusterAddrs)

	if len(clusterAddrs) == 0 {
		return Identity{}, &ResolutionError{Kind: ErrNoClusterAddresses, Name: clusterDNS, Local: localAddrs}
	}

	matches := Intersect(localAddrs, clusterAddrs)
	if len(matches) != 1 {
		return Identity{}, &ResolutionError{
			Kind:    ErrNoUniqueLocalMatch,
			Name:    clusterDNS,
			Local:   localAddrs,
			Cluster: clusterAddrs,
			Matches: matches,
		}
	}
	return Identity{
		Address:          matches[0],
		ExpectedNodes:    len(clusterAddrs),
		LocalAddresses:   localAddrs,
		ClusterAddresses: clusterAddrs,
	}, nil
}

// Intersect returns the elements of a that are also in b, in a's order.
func Intersect(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, x := range b {
		in[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := in[x]; ok {
			out = append(out, x)
		}
	}
	return out
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
