package tlsconfig

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledReturnsNil(t *testing.T) {
	cfg, err := Options{}.Client()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = Options{}.Server()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestServerRequiresKeyPair(t *testing.T) {
	_, err := Options{Enable: true}.Server()
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	cfg, err := Options{Enable: true, InsecureSkipVerify: true, ServerName: "es.internal"}.Client()
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "es.internal", cfg.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestBadCAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := Options{Enable: true, CAFile: path}.Client()
	assert.Error(t, err)

	_, err = Options{Enable: true, CAFile: filepath.Join(t.TempDir(), "missing.pem")}.Client()
	assert.Error(t, err)
}
