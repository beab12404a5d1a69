package memory

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/utils"
)

func TestMemoryTLSProvider(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryTLSProvider()

	_, err := p.GetCertificate(ctx)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.Error(t, p.Store(ctx, []byte("bad"), []byte("bad")))

	certPEM, keyPEM, err := utils.GenerateSelfSignedCert()
	require.NoError(t, err)
	require.NoError(t, p.Store(ctx, certPEM, keyPEM))

	cert, err := p.GetCertificate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}
