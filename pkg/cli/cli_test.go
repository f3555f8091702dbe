package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirimatin/eventstore-probes/pkg/exporter"
	mgmtgrpc "github.com/amirimatin/eventstore-probes/pkg/transport/grpc"
)

const clusterXML = `<ClusterInfoDto><Members>
<MemberInfoDto><State>Master</State><IsAlive>true</IsAlive><InternalHttpIp>10.0.0.5</InternalHttpIp></MemberInfoDto>
<MemberInfoDto><State>Slave</State><IsAlive>true</IsAlive><InternalHttpIp>10.0.0.6</InternalHttpIp></MemberInfoDto>
<MemberInfoDto><State>%s</State><IsAlive>true</IsAlive><InternalHttpIp>10.0.0.7</InternalHttpIp></MemberInfoDto>
</Members><ServerIp>10.0.0.5</ServerIp><ServerPort>2113</ServerPort></ClusterInfoDto>`

func serveBodies(t *testing.T, bodies map[string]string) (host, port string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	return host, port
}

func run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	var ee *ExitError
	if err != nil && errors.As(err, &ee) && ee.Message != "" {
		out.WriteString(ee.Message + "\n")
	}
	return out.String(), ExitCode(err)
}

func TestCheckGossipExitCodes(t *testing.T) {
	cases := []struct {
		state    string
		expected string
		code     int
		prefix   string
	}{
		{"Slave", "3", 0, "CheckGossip OK: "},
		{"Clone", "3", 1, "CheckGossip WARNING: "},
		{"Slave", "4", 2, "CheckGossip CRITICAL: Wrong number of nodes, was 3 should be 4"},
	}
	for _, tc := range cases {
		t.Run(tc.state+"/"+tc.expected, func(t *testing.T) {
			host, port := serveBodies(t, map[string]string{"/gossip?format=xml": fmt.Sprintf(clusterXML, tc.state)})
			out, code := run(t, "check-gossip", "--discover-via-dns=false", "--address", host, "--port", port, "--expected-nodes", tc.expected)
			assert.Equal(t, tc.code, code, out)
			assert.True(t, strings.HasPrefix(out, tc.prefix), out)
		})
	}
}

func TestCheckGossipUnreachableIsCritical(t *testing.T) {
	host, port := serveBodies(t, map[string]string{})
	out, code := run(t, "check-gossip", "--discover-via-dns=false", "--address", host, "--port", port)
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "has event store fallen over on this node?")
}

func TestCheckGossipDiscoveryWithoutLocalMatch(t *testing.T) {
	_, port := serveBodies(t, map[string]string{"/gossip?format=xml": fmt.Sprintf(clusterXML, "Slave")})

	// localhost never intersects a non-loopback local address set.
	out, code := run(t, "check-gossip", "--cluster-dns", "localhost", "--local-addrs", "10.9.9.9", "--port", port, "--timeout", "1s")
	assert.Equal(t, 2, code, out)
	assert.True(t, strings.HasPrefix(out, "CheckGossip CRITICAL: "), out)
}

func TestCheckProjectionsExitCodes(t *testing.T) {
	host, port := serveBodies(t, map[string]string{
		"/projections/continuous": `{"projections":[{"name":"$streams","status":"Running","progress":99.5}]}`,
	})

	out, code := run(t, "check-projections", "--discover-via-dns=false", "--address", host, "--port", port)
	assert.Equal(t, 2, code)
	assert.Equal(t, "CheckProjections CRITICAL: The following projections are not 100% done: $streams\n", out)

	out, code = run(t, "check-projections", "--discover-via-dns=false", "--address", host, "--port", port, "--progress-minimum", "99")
	assert.Equal(t, 0, code)
	assert.Equal(t, "CheckProjections OK: projections api at "+host+" reports all projections are running and up to date\n", out)
}

func TestMetricsProjectionsOutput(t *testing.T) {
	host, port := serveBodies(t, map[string]string{
		"/projections/any": `{"projections":[{"name":"$streams","status":"Running","progress":100}]}`,
	})
	out, code := run(t, "metrics-projections", "--discover-via-dns=false", "--address", host, "--port", port, "--cluster-dns", "es.example.com")
	require.Equal(t, 0, code, out)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], "es.eventstore.$streams.status 0 "), lines[0])
	assert.True(t, strings.HasPrefix(lines[4], "es.eventstore.$streams.progress 100 "), lines[4])
}

func TestMetricsStreamCountWithoutStreamsIsUnknown(t *testing.T) {
	out, code := run(t, "metrics-streamcount", "--discover-via-dns=false")
	assert.Equal(t, 3, code)
	assert.Contains(t, out, "MetricsStreamcount UNKNOWN: no streams configured")
}

func TestMetricsStreamCountPartialFailureWarns(t *testing.T) {
	host, port := serveBodies(t, map[string]string{"/streams/orders": `{"eTag":"41;-1296467268"}`})
	out, code := run(t, "metrics-streamcount", "--discover-via-dns=false", "--address", host, "--port", port,
		"--streams", "orders,missing", "--metric-path", "node1.eventstore")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "node1.eventstore.streams.orders.count 41 ")
	assert.Contains(t, out, "MetricsStreamcount WARNING: one or more streams could not be accessed")
}

func TestConfigFileFeedsFlags(t *testing.T) {
	host, port := serveBodies(t, map[string]string{
		"/projections/continuous": `{"projections":[{"name":"$streams","status":"Running","progress":80}]}`,
	})
	path := filepath.Join(t.TempDir(), "esprobe.yaml")
	cfg := fmt.Sprintf("discover_via_dns: false\naddress: %s\nport: %s\nprojections:\n  progress_minimum: 75\n", host, port)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out, code := run(t, "check-projections", "--config", path)
	assert.Equal(t, 0, code, out)

	// An explicit flag wins over the file.
	out, code = run(t, "check-projections", "--config", path, "--progress-minimum", "90")
	assert.Equal(t, 2, code, out)
}

func TestBadConfigIsUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_key: 1\n"), 0o600))

	_, code := run(t, "check-gossip", "--config", path)
	assert.Equal(t, 3, code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(&ExitError{Code: 1}))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: 2})))
	assert.Equal(t, 3, ExitCode(errors.New("unknown flag")))
}

func TestHealthCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gs := mgmtgrpc.NewServer("127.0.0.1:0", exporter.ServiceGossip)
	require.NoError(t, gs.Start(ctx))
	gs.SetServing(exporter.ServiceGossip, true)

	out, code := run(t, "health", "--addr", gs.Addr(), "--service", exporter.ServiceGossip)
	assert.Equal(t, 0, code, out)
	assert.Equal(t, "Health OK: eventstore.gossip is SERVING\n", out)

	out, code = run(t, "health", "--addr", gs.Addr())
	assert.Equal(t, 2, code, out)
	assert.Equal(t, "Health CRITICAL: overall is NOT_SERVING\n", out)
}
