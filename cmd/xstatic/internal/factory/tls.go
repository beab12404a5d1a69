package factory

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/config"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/core"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/storage/filesystem"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/storage/kubernetes"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/storage/memory"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/utils"

	k8s "k8s.io/client-go/kubernetes"
)

// TLSFactory creates TLS providers based on configuration
type TLSFactory struct {
	cfg *config.Config
}

// NewTLSFactory creates a new TLS factory
func NewTLSFactory(cfg *config.Config) *TLSFactory {
	return &TLSFactory{cfg: cfg}
}

// Create creates a TLS provider based on configuration.
// client is only used, and required, in kubernetes mode.
func (f *TLSFactory) Create(ctx context.Context, client k8s.Interface) (core.TLSProvider, error) {
	switch f.cfg.TLSMode {
	case config.TLSModeFile:
		return f.createFileProvider()
	case config.TLSModeKubernetes:
		return f.createKubernetesProvider(client)
	case config.TLSModeMemory:
		return f.createMemoryProvider()
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s", f.cfg.TLSMode)
	}
}

func (f *TLSFactory) createFileProvider() (core.TLSProvider, error) {
	provider := filesystem.NewFileTLSProvider(f.cfg.CertFile, f.cfg.KeyFile)
	logger.Debug("Creating File-based TLS Provider",
		"cert", provider.CertFile,
		"key", provider.KeyFile)
	return provider, nil
}

func (f *TLSFactory) createKubernetesProvider(client k8s.Interface) (core.TLSProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("kubernetes TLS mode requires a kubernetes client")
	}

	logger.Debug("Creating Kubernetes TLS Provider",
		"namespace", f.cfg.Namespace,
		"secret", f.cfg.TLSSecretName)

	return kubernetes.NewK8sTLSProvider(client, f.cfg.Namespace, f.cfg.TLSSecretName), nil
}

func (f *TLSFactory) createMemoryProvider() (core.TLSProvider, error) {
	logger.Debug("Creating Memory TLS Provider")
	return memory.NewMemoryTLSProvider(), nil
}

// EnsureCertificate loads the certificate from provider. When none can be
// loaded it generates and stores a self-signed one if auto generation is
// enabled (always in memory mode); otherwise the load error is returned.
func (f *TLSFactory) EnsureCertificate(ctx context.Context, provider core.TLSProvider) (*tls.Certificate, error) {
	cert, err := provider.GetCertificate(ctx)

	// Certificate doesn't exist
	if err != nil {
		if !f.cfg.TLSAutoGenerate && f.cfg.TLSMode != config.TLSModeMemory {
			return nil, fmt.Errorf("certificate not available (use --tls-auto-generate to create a self-signed one): %w", err)
		}
		logger.Info("Certificate not found. Generating new self-signed certificate...", "reason", err)
		cert, err = f.generateAndStoreCertificate(ctx, provider)
		if err != nil {
			return nil, err
		}
	}

	// Certificate exists - validate it
	if err := f.validateCertificate(cert); err != nil {
		return nil, err
	}

	logger.Debug("Certificate loaded and validated successfully")
	return cert, nil
}

// validateCertificate rejects certificates without a parsable leaf and
// warns about expired or soon expiring ones.
func (f *TLSFactory) validateCertificate(cert *tls.Certificate) error {
	leaf, err := leafCertificate(cert)
	if err != nil {
		return err
	}

	expiring, notAfter, err := ValidateCertificateExpiry(leaf, f.cfg.TLSRenewalThresholdDays, time.Now())
	if err != nil {
		logger.Warn("Certificate is not currently valid; clients will reject it", "subject", leaf.Subject.String(), "error", err)
		return nil
	}
	if expiring {
		logger.Warn("Certificate is expiring soon", "subject", leaf.Subject.String(), "not_after", notAfter)
	}
	return nil
}

func (f *TLSFactory) generateAndStoreCertificate(ctx context.Context, provider core.TLSProvider) (*tls.Certificate, error) {
	certPEM, keyPEM, err := utils.GenerateSelfSignedCert(f.certificateHosts()...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}

	// Store the certificate (handles race condition for Kubernetes secrets)
	if err := provider.Store(ctx, certPEM, keyPEM); err != nil {
		// If store fails (possibly due to race condition), try to load again
		logger.Warn("Failed to store certificate, attempting to load existing cert", "error", err)
		cert, loadErr := provider.GetCertificate(ctx)
		if loadErr != nil {
			return nil, fmt.Errorf("failed to load certificate after store failure: %w", loadErr)
		}
		logger.Info("Successfully loaded certificate created by another instance")
		return cert, nil
	}

	logger.Info("Successfully generated and stored self-signed certificate")
	return provider.GetCertificate(ctx)
}

// certificateHosts lists the names a generated certificate is valid for.
func (f *TLSFactory) certificateHosts() []string {
	hosts := []string{"localhost", "127.0.0.1", "::1"}
	switch f.cfg.Hostname {
	case "", "localhost", "127.0.0.1", "::1", "0.0.0.0", "::":
		return hosts
	}
	return append([]string{f.cfg.Hostname}, hosts...)
}

// TLSConfig returns the server TLS configuration for cert.
// Only HTTP/1.1 is offered via ALPN.
func TLSConfig(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}
}

// ValidateCertificateExpiry reports whether leaf expires within
// thresholdDays of now. It fails if leaf is not valid at now.
func ValidateCertificateExpiry(leaf *x509.Certificate, thresholdDays int, now time.Time) (bool, time.Time, error) {
	if now.Before(leaf.NotBefore) {
		return false, leaf.NotAfter, fmt.Errorf("certificate not valid before %s", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return false, leaf.NotAfter, fmt.Errorf("certificate expired at %s", leaf.NotAfter.Format(time.RFC3339))
	}

	threshold := now.AddDate(0, 0, thresholdDays)
	isExpiring := leaf.NotAfter.Before(threshold)

	return isExpiring, leaf.NotAfter, nil
}

func leafCertificate(cert *tls.Certificate) (*x509.Certificate, error) {
	if cert.Leaf != nil {
		return cert.Leaf, nil
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return leaf, nil
}
