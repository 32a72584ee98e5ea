package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestFileManager_GetOrCreateCertificate(t *testing.T) {
	tests := []struct {
		setup    func(t *testing.T, m *FileManager)
		validate func(t *testing.T, m *FileManager, cert tls.Certificate)
		name     string
	}{
		{
			name: "creates new certificate when none exists",
			validate: func(t *testing.T, _ *FileManager, cert tls.Certificate) {
				t.Helper()
				parsed := leaf(t, cert)
				assert.Equal(t, "billsplit", parsed.Subject.Organization[0])
				assert.Contains(t, parsed.DNSNames, "localhost")
				require.Len(t, parsed.IPAddresses, 2)
				assert.NoError(t, parsed.VerifyHostname("localhost"))
				assert.NoError(t, parsed.VerifyHostname("127.0.0.1"))
				assert.True(t, parsed.NotAfter.After(time.Now().Add(364*24*time.Hour)))
			},
		},
		{
			name: "reuses existing valid certificate",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				_, err := m.GetOrCreateCertificate()
				require.NoError(t, err)
			},
			validate: func(t *testing.T, m *FileManager, cert tls.Certificate) {
				t.Helper()
				stored, err := tls.LoadX509KeyPair(m.certFile, m.keyFile)
				require.NoError(t, err)
				assert.Equal(t, stored.Certificate[0], cert.Certificate[0])
			},
		},
		{
			name: "replaces corrupt files",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				require.NoError(t, os.MkdirAll(m.certDir, 0o700))
				require.NoError(t, os.WriteFile(m.certFile, []byte("not a cert"), 0o600))
				require.NoError(t, os.WriteFile(m.keyFile, []byte("not a key"), 0o600))
			},
			validate: func(t *testing.T, _ *FileManager, cert tls.Certificate) {
				t.Helper()
				assert.NoError(t, leaf(t, cert).VerifyHostname("localhost"))
			},
		},
		{
			name: "replaces expired certificate",
			setup: func(t *testing.T, m *FileManager) {
				t.Helper()
				m.now = func() time.Time { return time.Now().Add(-2 * validFor) }
				_, err := m.GetOrCreateCertificate()
				require.NoError(t, err)
				m.now = time.Now
			},
			validate: func(t *testing.T, _ *FileManager, cert tls.Certificate) {
				t.Helper()
				assert.True(t, leaf(t, cert).NotAfter.After(time.Now()))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFileManager(filepath.Join(t.TempDir(), "certs"))
			if tt.setup != nil {
				tt.setup(t, m)
			}

			cert, err := m.GetOrCreateCertificate()
			require.NoError(t, err)
			tt.validate(t, m, cert)
		})
	}
}

func TestFileManager_CustomHosts(t *testing.T) {
	m := NewFileManager(t.TempDir(), "billsplit.test", "10.0.0.5")
	cert, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	parsed := leaf(t, cert)
	assert.Equal(t, []string{"billsplit.test"}, parsed.DNSNames)
	assert.NoError(t, parsed.VerifyHostname("10.0.0.5"))
	assert.Error(t, parsed.VerifyHostname("localhost"))

	// A manager for other hosts regenerates rather than reusing the pair.
	other := NewFileManager(m.certDir)
	cert, err = other.GetOrCreateCertificate()
	require.NoError(t, err)
	assert.NoError(t, leaf(t, cert).VerifyHostname("localhost"))
}

func TestFileManager_CertificateExists(t *testing.T) {
	m := NewFileManager(t.TempDir())

	exists, err := m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(m.certFile, []byte("x"), 0o600))
	exists, err = m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists, "key file is still missing")

	_, err = m.GetOrCreateCertificate()
	require.NoError(t, err)
	exists, err = m.CertificateExists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileManager_TLSConfig(t *testing.T) {
	m := NewFileManager(t.TempDir())
	conf, err := m.TLSConfig()
	require.NoError(t, err)
	require.Len(t, conf.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), conf.MinVersion)

	info, err := os.Stat(m.keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
