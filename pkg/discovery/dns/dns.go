package dns

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"strings"

	"github.com/amirimatin/eventstore-probes/pkg/discovery"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
)

// Options configures the system-resolver backed discovery.Resolver.
type Options struct {
	// Resolver optionally overrides the DNS resolver used.
	Resolver *net.Resolver

	// Logger optional.
	Logger *log.Logger
}

type impl struct {
	opts Options
}

// New returns a discovery.Resolver that answers through the operating
// system's resolver configuration (nsswitch, /etc/hosts, resolv.conf).
func New(opts Options) discovery.Resolver {
	return &impl{opts: opts}
}

func (d *impl) ResolveIPv4(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("dns: empty name")
	}
	res := d.opts.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	ips, err := res.LookupIP(ctx, "ip4", name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			logutil.Debugf(d.opts.Logger, "dns: %s has no A records", name)
			return nil, nil
		}
		return nil, fmt.Errorf("dns: lookup %s: %w", name, err)
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			out = append(out, v4.String())
		}
	}
	return normalize(out), nil
}

// normalize de-duplicates and sorts an address list.
func normalize(addrs []string) []string {
	set := make(map[string]struct{}, len(addrs))
	out := addrs[:0]
	for _, a := range addrs {
		if _, ok := set[a]; ok {
			continue
		}
		set[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
