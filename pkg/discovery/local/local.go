// Package local enumerates the IPv4 addresses bound to this machine.
package local

import (
	"fmt"
	"regexp"
	"sort"

	sockaddr "github.com/hashicorp/go-sockaddr"

	"github.com/amirimatin/eventstore-probes/pkg/discovery"
)

var (
	// localhost, 127.x[.y[.z]] and ::1 in any zero padded or compressed form.
	loopbackRE = regexp.MustCompile(`^localhost$|^127(?:\.[0-9]+){0,2}\.[0-9]+$|^(?:0*:)*?:?0*1$`)
	ipv4RE     = regexp.MustCompile(`^(?:[0-9]{1,3}\.){3}[0-9]{1,3}$`)
)

// Lister reads interface addresses through go-sockaddr.
type Lister struct{}

// New returns the interface-backed discovery.InterfaceLister.
func New() *Lister { return &Lister{} }

var _ discovery.InterfaceLister = (*Lister)(nil)

// ListIPv4 returns every IPv4 address configured on any interface,
// loopback included.
func (l *Lister) ListIPv4() ([]string, error) {
	ifAddrs, err := sockaddr.GetAllInterfaces()
	if err != nil {
		return nil, fmt.Errorf("local: enumerate interfaces: %w", err)
	}
	out := make([]string, 0, len(ifAddrs))
	for _, ifa := range ifAddrs {
		if ifa.SockAddr == nil || ifa.SockAddr.Type() != sockaddr.TypeIPv4 {
			continue
		}
		ip := sockaddr.ToIPv4Addr(ifa.SockAddr)
		if ip == nil {
			continue
		}
		out = append(out, ip.NetIP().String())
	}
	return out, nil
}

// IsLoopback reports whether addr names the local host.
func IsLoopback(addr string) bool { return loopbackRE.MatchString(addr) }

// IsIPv4 reports whether addr is shaped as a dotted quad.
func IsIPv4(addr string) bool { return ipv4RE.MatchString(addr) }

// Filter keeps non-loopback dotted-quad addresses, de-duplicated and sorted.
func Filter(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if IsLoopback(a) || !IsIPv4(a) {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Addresses lists and filters in one step.
func Addresses(l discovery.InterfaceLister) ([]string, error) {
	raw, err := l.ListIPv4()
	if err != nil {
		return nil, err
	}
	return Filter(raw), nil
}
