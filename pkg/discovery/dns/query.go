package dns

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/amirimatin/eventstore-probes/pkg/discovery"
	"github.com/amirimatin/eventstore-probes/pkg/internal/logutil"
)

// QueryOptions configures the direct-query resolver.
type QueryOptions struct {
	// Servers are nameservers as host:port. When empty they are read from
	// ConfigPath.
	Servers []string

	// ConfigPath is a resolv.conf style file; defaults to /etc/resolv.conf.
	ConfigPath string

	// Timeout bounds a single exchange; if zero, defaults to 2s.
	Timeout time.Duration

	Logger *log.Logger
}

type querier struct {
	opts    QueryOptions
	servers []string
}

// NewQuerier returns a discovery.Resolver that sends A queries straight to
// the configured nameservers, bypassing /etc/hosts and the libc resolver.
// This mirrors what a cluster DNS record publishes and nothing else.
func NewQuerier(opts QueryOptions) (discovery.Resolver, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	servers := append([]string(nil), opts.Servers...)
	if len(servers) == 0 {
		path := opts.ConfigPath
		if path == "" {
			path = "/etc/resolv.conf"
		}
		cc, err := mdns.ClientConfigFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("dns: read %s: %w", path, err)
		}
		for _, s := range cc.Servers {
			servers = append(servers, net.JoinHostPort(s, cc.Port))
		}
	}
	for i, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			servers[i] = net.JoinHostPort(s, "53")
		}
	}
	if len(servers) == 0 {
		return nil, errors.New("dns: no nameservers configured")
	}
	return &querier{opts: opts, servers: servers}, nil
}

func (q *querier) ResolveIPv4(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("dns: empty name")
	}
	msg := new(mdns.Msg)
	msg.SetQuestion(mdns.Fqdn(name), mdns.TypeA)

	var lastErr error
	for _, server := range q.servers {
		resp, err := q.exchange(ctx, msg, server)
		if err != nil {
			lastErr = err
			logutil.Debugf(q.opts.Logger, "dns: query %s via %s failed: %v", name, server, err)
			continue
		}
		switch resp.Rcode {
		case mdns.RcodeSuccess:
			var out []string
			for _, rr := range resp.Answer {
				if a, ok := rr.(*mdns.A); ok {
					out = append(out, a.A.String())
				}
			}
			return normalize(out), nil
		case mdns.RcodeNameError:
			return nil, nil
		default:
			lastErr = fmt.Errorf("dns: %s answered %s for %s", server, mdns.RcodeToString[resp.Rcode], name)
		}
	}
	return nil, lastErr
}

func (q *querier) exchange(ctx context.Context, msg *mdns.Msg, server string) (*mdns.Msg, error) {
	c := &mdns.Client{Net: "udp", Timeout: q.opts.Timeout}
	resp, _, err := c.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	if resp.Truncated {
		c.Net = "tcp"
		resp, _, err = c.ExchangeContext(ctx, msg, server)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}
