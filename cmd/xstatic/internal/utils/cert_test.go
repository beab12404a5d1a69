package utils

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSignedCert()
	require.NoError(t, err)

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 2)
	assert.True(t, leaf.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")))
	assert.NoError(t, leaf.VerifyHostname("localhost"))
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
	assert.True(t, leaf.NotAfter.After(time.Now().Add(300*24*time.Hour)))
}

func TestGenerateSelfSignedCertHosts(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSignedCert("files.example.com", "10.0.0.1")
	require.NoError(t, err)

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)

	assert.Equal(t, "files.example.com", leaf.Subject.CommonName)
	assert.NoError(t, leaf.VerifyHostname("files.example.com"))
	assert.NoError(t, leaf.VerifyHostname("10.0.0.1"))
	assert.Error(t, leaf.VerifyHostname("localhost"))
}
