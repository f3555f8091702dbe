package static

import (
	"context"
	"sort"
	"strings"

	"github.com/amirimatin/eventstore-probes/pkg/discovery"
)

// Addrs is a fixed, sorted, de-duplicated address set.
type Addrs struct {
	addrs []string
}

// New returns a fixed address set usable both as a discovery.Resolver (the
// queried name is ignored) and as a discovery.InterfaceLister. It backs the
// --local-addrs override and test fixtures.
func New(addrs ...string) *Addrs {
	seen := make(map[string]struct{}, len(addrs))
	cleaned := make([]string, 0, len(addrs))
	for _, v := range addrs {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return &Addrs{addrs: cleaned}
}

func (s *Addrs) ResolveIPv4(context.Context, string) ([]string, error) {
	return append([]string(nil), s.addrs...), nil
}

func (s *Addrs) ListIPv4() ([]string, error) {
	return append([]string(nil), s.addrs...), nil
}

var (
	_ discovery.Resolver        = (*Addrs)(nil)
	_ discovery.InterfaceLister = (*Addrs)(nil)
)

// Parse converts a comma-separated list into []string.
func Parse(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
