package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirimatin/eventstore-probes/pkg/discovery/static"
)

type failingDNS struct{ err error }

func (f failingDNS) ResolveIPv4(context.Context, string) ([]string, error) { return nil, f.err }

type failingLister struct{ err error }

func (f failingLister) ListIPv4() ([]string, error) { return nil, f.err }

func newResolver(t *testing.T, localAddrs, clusterAddrs []string) *Resolver {
	t.Helper()
	r, err := New(static.New(clusterAddrs...), static.New(localAddrs...), nil)
	require.NoError(t, err)
	return r
}

func TestResolveSingleMatch(t *testing.T) {
	r := newResolver(t, []string{"10.0.0.5", "127.0.0.1"}, []string{"10.0.0.5", "10.0.0.6", "10.0.0.7"})

	id, err := r.Resolve(context.Background(), "es.cluster.local")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", id.Address)
	assert.Equal(t, 3, id.ExpectedNodes)
	assert.Equal(t, []string{"10.0.0.5"}, id.LocalAddresses)
}

func TestResolveNoClusterAddresses(t *testing.T) {
	r := newResolver(t, []string{"10.0.0.5"}, nil)

	_, err := r.Resolve(context.Background(), "es.cluster.local")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoClusterAddresses))
	assert.False(t, errors.Is(err, ErrNoUniqueLocalMatch))
	assert.Contains(t, err.Error(), "es.cluster.local")
}

func TestResolveNoLocalMatch(t *testing.T) {
	r := newResolver(t, []string{"192.168.1.10"}, []string{"10.0.0.5", "10.0.0.6"})

	_, err := r.Resolve(context.Background(), "es.cluster.local")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoUniqueLocalMatch))

	var re *ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Empty(t, re.Matches)
	assert.Equal(t, []string{"10.0.0.5", "10.0.0.6"}, re.Cluster)
}

func TestResolveAmbiguousMatch(t *testing.T) {
	r := newResolver(t, []string{"10.0.0.5", "10.0.0.6"}, []string{"10.0.0.5", "10.0.0.6", "10.0.0.7"})

	_, err := r.Resolve(context.Background(), "es.cluster.local")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoUniqueLocalMatch))

	var re *ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, []string{"10.0.0.5", "10.0.0.6"}, re.Matches)
	assert.Contains(t, err.Error(), "there were 2")
}

func TestResolveLoopbackNeverMatches(t *testing.T) {
	// A cluster record pointing at loopback must not make the local loopback
	// interface count as this node.
	r := newResolver(t, []string{"127.0.0.1"}, []string{"127.0.0.1"})

	_, err := r.Resolve(context.Background(), "localhost")
	assert.True(t, errors.Is(err, ErrNoUniqueLocalMatch))
}

// Property: resolution succeeds iff exactly one local address is a cluster address.
func TestResolveSucceedsIffSingleIntersection(t *testing.T) {
	universe := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	subsets := func() [][]string {
		var out [][]string
		for mask := 0; mask < 1<<len(universe); mask++ {
			var s []string
			for i, a := range universe {
				if mask&(1<<i) != 0 {
					s = append(s, a)
				}
			}
			out = append(out, s)
		}
		return out
	}()

	for _, l := range subsets {
		for _, c := range subsets {
			r := newResolver(t, l, c)
			id, err := r.Resolve(context.Background(), "es")
			n := len(Intersect(l, c))
			switch {
			case len(c) == 0:
				assert.ErrorIs(t, err, ErrNoClusterAddresses, "L=%v C=%v", l, c)
			case n == 1:
				require.NoError(t, err, "L=%v C=%v", l, c)
				assert.Equal(t, len(c), id.ExpectedNodes)
			default:
				assert.ErrorIs(t, err, ErrNoUniqueLocalMatch, "L=%v C=%v", l, c)
			}
		}
	}
}

func TestResolvePropagatesTransportErrors(t *testing.T) {
	boom := errors.New("servfail")
	r, err := New(failingDNS{err: boom}, static.New("10.0.0.5"), nil)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "es")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoClusterAddresses)

	r, err = New(static.New("10.0.0.5"), failingLister{err: boom}, nil)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "es")
	assert.ErrorIs(t, err, boom)
}

func TestNewRejectsNilCapabilities(t *testing.T) {
	_, err := New(nil, static.New(), nil)
	assert.Error(t, err)
	_, err = New(static.New(), nil, nil)
	assert.Error(t, err)
}
