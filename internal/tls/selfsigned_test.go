package tls

import (
	cryptotls "crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/pkg/models"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "certs", "server.crt")
	keyPath := filepath.Join(dir, "certs", "server.key")

	require.NoError(t, GenerateSelfSignedCert(certPath, keyPath, []string{"localhost", "127.0.0.1"}))

	_, err := cryptotls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)

	data, err := os.ReadFile(certPath)
	require.NoError(t, err)
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.True(t, cert.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")))

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEnsureCertificate(t *testing.T) {
	dir := t.TempDir()
	cfg := config.TLSConfig{
		Enable:    true,
		CertFile:  filepath.Join(dir, "server.crt"),
		KeyFile:   filepath.Join(dir, "server.key"),
		Hostnames: []string{"localhost"},
	}

	generated, err := EnsureCertificate(cfg)
	require.NoError(t, err)
	assert.True(t, generated)

	generated, err = EnsureCertificate(cfg)
	require.NoError(t, err)
	assert.False(t, generated, "existing certificates are reused")
}

func TestEnsureCertificate_NotConfigured(t *testing.T) {
	dir := t.TempDir()

	_, err := EnsureCertificate(config.TLSConfig{Enable: true})
	assert.ErrorIs(t, err, models.ErrNotConfigured)

	_, err = EnsureCertificate(config.TLSConfig{
		Enable:   true,
		CertFile: filepath.Join(dir, "missing.crt"),
		KeyFile:  filepath.Join(dir, "missing.key"),
	})
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}
