package identity

import (
	"errors"
	"fmt"
)

var (
	ErrNoClusterAddresses = errors.New("identity: no cluster addresses found")
	ErrNoUniqueLocalMatch = errors.New("identity: local addresses do not match exactly one cluster address")
)

// ResolutionError carries the address sets that led to a failed resolution.
// Kind is one of the sentinel errors above and is matched by errors.Is.
type ResolutionError struct {
	Kind    error
	Name    string
	Local   []string
	Cluster []string
	Matches []string
}

func (e *ResolutionError) Error() string {
	if errors.Is(e.Kind, ErrNoClusterAddresses) {
		return fmt.Sprintf("could not find any ips at dns name %s so cannot check gossip", e.Name)
	}
	return fmt.Sprintf("this machine has ips of %v, event store (according to dns lookup of %s) has ips of %v. There should be exactly one match, but there were %d",
		e.Local, e.Name, e.Cluster, len(e.Matches))
}

func (e *ResolutionError) Unwrap() error { return e.Kind }
