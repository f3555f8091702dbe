package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "esprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, `
discover_via_dns: false
cluster_dns: es.prod.internal
address: 10.0.0.5
port: 2113
timeout: 5s
local_addrs: [10.0.0.5, 192.168.1.4]
streams:
  - orders
  - $ce-billing
auth:
  user: ops
  password: secret
gossip:
  expected_nodes: 3
  format: json
projections:
  progress_minimum: 99.5
serve:
  listen: ":9810"
  interval: 30s
tls:
  enable: true
  insecure_skip_verify: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.DiscoverViaDNS)
	assert.False(t, *cfg.DiscoverViaDNS)
	assert.Equal(t, "es.prod.internal", cfg.ClusterDNS)
	assert.Equal(t, 2113, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"10.0.0.5", "192.168.1.4"}, cfg.LocalAddrs)
	assert.Equal(t, []string{"orders", "$ce-billing"}, cfg.Streams)
	assert.Equal(t, "ops", cfg.Auth.User)
	assert.Equal(t, 3, cfg.Gossip.ExpectedNodes)
	assert.Equal(t, 99.5, cfg.Projections.ProgressMinimum)
	assert.Equal(t, 30*time.Second, cfg.Serve.Interval)
	assert.True(t, cfg.TLS.Enable)
	assert.True(t, cfg.TLS.InsecureSkipVerify)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "cluster_dns: from-file\ngossip:\n  expected_nodes: 3\n")
	t.Setenv("ESPROBE_CLUSTER_DNS", "from-env")
	t.Setenv("ESPROBE_GOSSIP_EXPECTED_NODES", "5")
	t.Setenv("ESPROBE_STREAMS", "a,b")
	t.Setenv("ESPROBE_DISCOVER_VIA_DNS", "true")
	t.Setenv("ESPROBE_AUTH_USER", "env-user")
	t.Setenv("ESPROBE_TLS_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("ESPROBE_SERVE_GRPC_LISTEN", ":9811")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ClusterDNS)
	assert.Equal(t, 5, cfg.Gossip.ExpectedNodes)
	assert.Equal(t, []string{"a", "b"}, cfg.Streams)
	require.NotNil(t, cfg.DiscoverViaDNS)
	assert.True(t, *cfg.DiscoverViaDNS)
	assert.Equal(t, "env-user", cfg.Auth.User)
	assert.True(t, cfg.TLS.InsecureSkipVerify)
	assert.Equal(t, ":9811", cfg.Serve.GRPCListen)
}

func TestBareVariablesAreIgnored(t *testing.T) {
	t.Setenv("USER", "someone")
	t.Setenv("PORT", "8080")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.User)
	assert.Zero(t, cfg.Port)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg.DiscoverViaDNS)
	assert.Zero(t, cfg.Port)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "cluster_dns: [unterminated"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "clusterdns: typo\n"))
	assert.Error(t, err)

	t.Setenv("ESPROBE_PORT", "not-a-number")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: 70000, Gossip: GossipConfig{Format: "csv"}, Projections: ProjectionsConfig{ProgressMinimum: 120}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 70000")
	assert.Contains(t, err.Error(), "gossip.format")
	assert.Contains(t, err.Error(), "progress_minimum")

	assert.NoError(t, (&Config{}).Validate())
}
