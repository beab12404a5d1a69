package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/config"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"

	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewKubeClient builds a Kubernetes client for the Secret-backed TLS mode.
// An explicit kubeconfig wins; otherwise the in-cluster configuration is
// used when running in a pod, and ~/.kube/config elsewhere.
func NewKubeClient(cfg *config.Config) (k8s.Interface, error) {
	logger.Debug("Creating Kubernetes client",
		"kubeconfig", cfg.KubeConfigPath,
		"context", cfg.KubeContext)

	restConfig, err := kubeRESTConfig(cfg)
	if err != nil {
		return nil, err
	}

	clientset, err := k8s.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return clientset, nil
}

func kubeRESTConfig(cfg *config.Config) (*rest.Config, error) {
	kubeconfig := cfg.KubeConfigPath
	inCluster := os.Getenv("KUBERNETES_SERVICE_HOST") != ""

	if kubeconfig == "" && inCluster {
		logger.Debug("Attempting in-cluster Kubernetes configuration")
		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build in-cluster kubernetes config: %w", err)
		}
		return restConfig, nil
	}

	if kubeconfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("no kubeconfig given and home directory unknown: %w", err)
		}
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	configOverrides := &clientcmd.ConfigOverrides{}
	if cfg.KubeContext != "" {
		configOverrides.CurrentContext = cfg.KubeContext
		logger.Debug("Using specific Kubernetes context", "context", cfg.KubeContext)
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig},
		configOverrides,
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfig, err)
	}
	return restConfig, nil
}
