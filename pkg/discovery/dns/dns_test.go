package dns

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got := normalize([]string{"10.0.0.7", "10.0.0.5", "10.0.0.7", "10.0.0.6"})
	assert.Equal(t, []string{"10.0.0.5", "10.0.0.6", "10.0.0.7"}, got)
}

func TestSystemResolverLiteral(t *testing.T) {
	d := New(Options{})
	got, err := d.ResolveIPv4(context.Background(), "10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1.2.3"}, got)
}

func TestSystemResolverEmptyName(t *testing.T) {
	_, err := New(Options{}).ResolveIPv4(context.Background(), "  ")
	assert.Error(t, err)
}

// startServer runs an in-process authoritative server answering A queries
// from records; unknown names get NXDOMAIN.
func startServer(t *testing.T, records map[string][]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := mdns.NewServeMux()
	mux.HandleFunc(".", func(w mdns.ResponseWriter, r *mdns.Msg) {
		m := new(mdns.Msg)
		q := r.Question[0]
		ips, ok := records[q.Name]
		if !ok {
			m.SetRcode(r, mdns.RcodeNameError)
			_ = w.WriteMsg(m)
			return
		}
		m.SetReply(r)
		m.Answer = append(m.Answer, &mdns.CNAME{
			Hdr:    mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypeCNAME, Class: mdns.ClassINET, Ttl: 60},
			Target: q.Name,
		})
		for _, ip := range ips {
			m.Answer = append(m.Answer, &mdns.A{
				Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypeA, Class: mdns.ClassINET, Ttl: 60},
				A:   net.ParseIP(ip),
			})
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &mdns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns server did not start")
	}
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestQuerierResolvesARecords(t *testing.T) {
	addr := startServer(t, map[string][]string{
		"es.cluster.local.": {"10.0.0.7", "10.0.0.5", "10.0.0.6"},
	})
	q, err := NewQuerier(QueryOptions{Servers: []string{addr}, Timeout: time.Second})
	require.NoError(t, err)

	got, err := q.ResolveIPv4(context.Background(), "es.cluster.local")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.5", "10.0.0.6", "10.0.0.7"}, got)
}

func TestQuerierNXDomainIsEmpty(t *testing.T) {
	addr := startServer(t, map[string][]string{})
	q, err := NewQuerier(QueryOptions{Servers: []string{addr}, Timeout: time.Second})
	require.NoError(t, err)

	got, err := q.ResolveIPv4(context.Background(), "missing.cluster.local")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuerierReadsResolvConf(t *testing.T) {
	addr := startServer(t, map[string][]string{"es.local.": {"10.9.9.9"}})
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	dir := t.TempDir()
	conf := filepath.Join(dir, "resolv.conf")
	require.NoError(t, os.WriteFile(conf, []byte("nameserver "+host+"\noptions timeout:1\n"), 0o644))

	q, err := NewQuerier(QueryOptions{ConfigPath: conf, Timeout: time.Second})
	require.NoError(t, err)
	// resolv.conf carries no port; point the parsed server at the test port.
	q.(*querier).servers = []string{net.JoinHostPort(host, port)}

	got, err := q.ResolveIPv4(context.Background(), "es.local")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.9.9.9"}, got)
}

func TestQuerierDefaultsPort(t *testing.T) {
	q, err := NewQuerier(QueryOptions{Servers: []string{"192.0.2.1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1:53"}, q.(*querier).servers)
}

func TestQuerierMissingConfig(t *testing.T) {
	_, err := NewQuerier(QueryOptions{ConfigPath: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}
