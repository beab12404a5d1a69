package filesystem

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
)

// FileTLSProvider loads the server certificate from PEM files.
// When KeyFile is empty, or equal to CertFile, the private key is read from
// the certificate file, which then holds both PEM blocks.
type FileTLSProvider struct {
	CertFile string
	KeyFile  string
}

func NewFileTLSProvider(certFile, keyFile string) *FileTLSProvider {
	if keyFile == "" {
		keyFile = certFile
	}
	return &FileTLSProvider{
		CertFile: certFile,
		KeyFile:  keyFile,
	}
}

// Combined reports whether certificate and key share one file.
func (p *FileTLSProvider) Combined() bool {
	return filepath.Clean(p.CertFile) == filepath.Clean(p.KeyFile)
}

func (p *FileTLSProvider) GetCertificate(ctx context.Context) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(p.CertFile, p.KeyFile)
	if err != nil {
		if p.Combined() {
			return nil, fmt.Errorf("failed to load certificate and key from %s: %w", p.CertFile, err)
		}
		return nil, fmt.Errorf("failed to load key pair from %s, %s: %w", p.CertFile, p.KeyFile, err)
	}
	return &cert, nil
}

func (p *FileTLSProvider) Store(ctx context.Context, certPEM, keyPEM []byte) error {
	if p.Combined() {
		data := bytes.Join([][]byte{certPEM, keyPEM}, nil)
		if err := os.WriteFile(p.CertFile, data, 0600); err != nil {
			return fmt.Errorf("failed to write cert file: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(p.CertFile, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write cert file: %w", err)
	}
	if err := os.WriteFile(p.KeyFile, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}
