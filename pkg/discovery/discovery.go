package discovery

import "context"

// Resolver returns the IPv4 addresses published for a DNS name (A records).
// An empty result with a nil error is a valid answer: the name exists (or
// not) but carries no A records.
type Resolver interface {
	ResolveIPv4(ctx context.Context, name string) ([]string, error)
}

// InterfaceLister enumerates the addresses bound to this machine's network
// interfaces. Implementations may return loopback and IPv6 entries; callers
// filter them (see local.Filter).
type InterfaceLister interface {
	ListIPv4() ([]string, error)
}
