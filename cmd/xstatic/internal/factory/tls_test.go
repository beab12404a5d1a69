package factory

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/config"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/storage/filesystem"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/storage/kubernetes"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/storage/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.CertFile = filepath.Join(t.TempDir(), "server.pem")
	cfg.Namespace = "web"
	cfg.TLSSecretName = "xstatic-tls"
	return cfg
}

func TestTLSFactoryCreate(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	p, err := NewTLSFactory(cfg).Create(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, &filesystem.FileTLSProvider{}, p)

	cfg.TLSMode = config.TLSModeMemory
	p, err = NewTLSFactory(cfg).Create(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.MemoryTLSProvider{}, p)

	cfg.TLSMode = config.TLSModeKubernetes
	_, err = NewTLSFactory(cfg).Create(ctx, nil)
	assert.Error(t, err)

	p, err = NewTLSFactory(cfg).Create(ctx, fake.NewSimpleClientset())
	require.NoError(t, err)
	assert.IsType(t, &kubernetes.K8sTLSProvider{}, p)

	cfg.TLSMode = "vault"
	_, err = NewTLSFactory(cfg).Create(ctx, nil)
	assert.Error(t, err)
}

func TestEnsureCertificateMissingFileIsFatal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	f := NewTLSFactory(cfg)

	p, err := f.Create(ctx, nil)
	require.NoError(t, err)

	_, err = f.EnsureCertificate(ctx, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), cfg.CertFile)
	assert.Contains(t, err.Error(), "--tls-auto-generate")

	_, statErr := os.Stat(cfg.CertFile)
	assert.True(t, os.IsNotExist(statErr), "nothing may be written without auto generation")
}

func TestEnsureCertificateInvalidFileIsFatal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.TLSAutoGenerate = false
	require.NoError(t, os.WriteFile(cfg.CertFile, []byte("not a pem"), 0o600))
	f := NewTLSFactory(cfg)

	p, err := f.Create(ctx, nil)
	require.NoError(t, err)
	_, err = f.EnsureCertificate(ctx, p)
	assert.Error(t, err)
}

func TestEnsureCertificateAutoGenerateFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.TLSAutoGenerate = true
	f := NewTLSFactory(cfg)

	p, err := f.Create(ctx, nil)
	require.NoError(t, err)

	cert, err := f.EnsureCertificate(ctx, p)
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	_, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.CertFile)
	require.NoError(t, err, "combined PEM must be written to the cert file")

	// A second start reuses the stored certificate.
	again, err := f.EnsureCertificate(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, cert.Certificate[0], again.Certificate[0])
}

func TestEnsureCertificateMemoryAlwaysGenerates(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.TLSMode = config.TLSModeMemory
	f := NewTLSFactory(cfg)

	p, err := f.Create(ctx, nil)
	require.NoError(t, err)
	cert, err := f.EnsureCertificate(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}

func TestEnsureCertificateKubernetes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.TLSMode = config.TLSModeKubernetes
	cfg.TLSAutoGenerate = true
	client := fake.NewSimpleClientset()
	f := NewTLSFactory(cfg)

	p, err := f.Create(ctx, client)
	require.NoError(t, err)
	_, err = f.EnsureCertificate(ctx, p)
	require.NoError(t, err)

	_, err = client.CoreV1().Secrets("web").Get(ctx, "xstatic-tls", metav1.GetOptions{})
	assert.NoError(t, err)
}

func TestCertificateHosts(t *testing.T) {
	cfg := testConfig(t)
	f := NewTLSFactory(cfg)
	assert.Equal(t, []string{"localhost", "127.0.0.1", "::1"}, f.certificateHosts())

	cfg.Hostname = "files.internal"
	assert.Equal(t, []string{"files.internal", "localhost", "127.0.0.1", "::1"}, f.certificateHosts())
}

func TestValidateCertificateExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	leaf := &x509.Certificate{
		NotBefore: now.AddDate(0, -1, 0),
		NotAfter:  now.AddDate(0, 0, 10),
	}

	expiring, notAfter, err := ValidateCertificateExpiry(leaf, 30, now)
	require.NoError(t, err)
	assert.True(t, expiring)
	assert.Equal(t, leaf.NotAfter, notAfter)

	expiring, _, err = ValidateCertificateExpiry(leaf, 5, now)
	require.NoError(t, err)
	assert.False(t, expiring)

	_, _, err = ValidateCertificateExpiry(leaf, 5, now.AddDate(0, 1, 0))
	assert.ErrorContains(t, err, "expired")

	_, _, err = ValidateCertificateExpiry(leaf, 5, now.AddDate(0, -2, 0))
	assert.ErrorContains(t, err, "not valid before")
}

func TestTLSConfig(t *testing.T) {
	cert := &tls.Certificate{Certificate: [][]byte{{1}}}
	c := TLSConfig(cert)

	assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)
	assert.Equal(t, []string{"http/1.1"}, c.NextProtos)
	assert.Len(t, c.Certificates, 1)
}
