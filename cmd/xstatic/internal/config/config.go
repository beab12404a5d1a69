package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"
)

// TLSMode represents TLS certificate source
type TLSMode string

const (
	TLSModeFile       TLSMode = "file"
	TLSModeKubernetes TLSMode = "kubernetes"
	TLSModeMemory     TLSMode = "memory"
)

// ErrFlags is wrapped by errors caused by bad command line arguments.
var ErrFlags = errors.New("invalid arguments")

// Config holds all application configuration.
// It is built once by Load and never modified afterwards.
type Config struct {
	// Core
	Debug bool `json:"debug"`

	// Server
	Hostname       string  `json:"hostname"`
	Port           int     `json:"port"`
	Root           string  `json:"root"`
	MaxConnections int     `json:"maxConnections"`
	RateLimit      float64 `json:"rateLimit"`
	RateBurst      int     `json:"rateBurst"`
	HealthAddr     string  `json:"healthAddr"`

	// TLS Configuration
	TLSMode                 TLSMode `json:"tlsMode"`
	CertFile                string  `json:"cert"`
	KeyFile                 string  `json:"key"`
	TLSSecretName           string  `json:"tlsSecretName"`
	TLSAutoGenerate         bool    `json:"tlsAutoGenerate"` // Generate self-signed if cert doesn't exist
	TLSRenewalThresholdDays int     `json:"tlsRenewalThresholdDays"`

	// Kubernetes (TLSModeKubernetes only)
	Namespace      string `json:"namespace"`
	KubeConfigPath string `json:"kubeconfig"`
	KubeContext    string `json:"kubeContext"`

	// ConfigFile is the YAML file the configuration was read from, if any.
	ConfigFile string `json:"-"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Hostname:                "localhost",
		Port:                    443,
		Root:                    ".",
		TLSMode:                 TLSModeFile,
		CertFile:                "server.pem",
		TLSRenewalThresholdDays: 30,
		Namespace:               determineNamespace(),
	}
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// Load builds the configuration from, in increasing precedence:
// built-in defaults, the YAML config file, environment variables and
// command line flags that were set explicitly.
func Load(args []string) (*Config, error) {
	fs, flags := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrFlags, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments: %s", ErrFlags, strings.Join(fs.Args(), " "))
	}

	cfg := Default()

	cfg.ConfigFile = getEnv("XSTATIC_CONFIG", "")
	if fs.Changed("config") {
		cfg.ConfigFile = flags.ConfigFile
	}
	if cfg.ConfigFile != "" {
		if err := cfg.loadFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	fs.Visit(func(f *pflag.Flag) {
		cfg.applyFlag(f.Name, flags)
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newFlagSet() (*pflag.FlagSet, *Config) {
	d := Default()
	v := &Config{}

	fs := pflag.NewFlagSet("xstatic", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringVar(&v.Hostname, "hostname", d.Hostname, "bind address")
	fs.IntVar(&v.Port, "port", d.Port, "listen port")
	fs.StringVar(&v.CertFile, "cert", d.CertFile, "PEM file containing the certificate (and the private key unless --key is set)")
	fs.StringVar(&v.KeyFile, "key", d.KeyFile, "PEM file containing the private key")
	fs.StringVar(&v.Root, "root", d.Root, "directory to serve")
	fs.StringVar((*string)(&v.TLSMode), "tls-mode", string(d.TLSMode), "certificate source: file, kubernetes or memory")
	fs.StringVar(&v.TLSSecretName, "tls-secret", d.TLSSecretName, "kubernetes.io/tls Secret holding the certificate (kubernetes mode)")
	fs.StringVar(&v.Namespace, "namespace", d.Namespace, "namespace of the TLS Secret")
	fs.StringVar(&v.KubeConfigPath, "kubeconfig", "", "kubeconfig path (in-cluster config when empty)")
	fs.StringVar(&v.KubeContext, "kube-context", "", "kubeconfig context")
	fs.BoolVar(&v.TLSAutoGenerate, "tls-auto-generate", d.TLSAutoGenerate, "generate and store a self-signed certificate when none exists")
	fs.IntVar(&v.TLSRenewalThresholdDays, "tls-renewal-threshold-days", d.TLSRenewalThresholdDays, "warn when the certificate expires within this many days")
	fs.IntVar(&v.MaxConnections, "max-connections", d.MaxConnections, "maximum concurrent connections (0 = unlimited)")
	fs.Float64Var(&v.RateLimit, "rate-limit", d.RateLimit, "maximum requests per second (0 = unlimited)")
	fs.IntVar(&v.RateBurst, "rate-burst", d.RateBurst, "rate limiter burst size (0 = derived from --rate-limit)")
	fs.StringVar(&v.HealthAddr, "health-addr", d.HealthAddr, "address of the plain HTTP health server (disabled when empty)")
	fs.StringVar(&v.ConfigFile, "config", "", "YAML configuration file")
	fs.BoolVar(&v.Debug, "debug", d.Debug, "enable debug logging")
	return fs, v
}

func (c *Config) applyFlag(name string, v *Config) {
	switch name {
	case "hostname":
		c.Hostname = v.Hostname
	case "port":
		c.Port = v.Port
	case "cert":
		c.CertFile = v.CertFile
	case "key":
		c.KeyFile = v.KeyFile
	case "root":
		c.Root = v.Root
	case "tls-mode":
		c.TLSMode = v.TLSMode
	case "tls-secret":
		c.TLSSecretName = v.TLSSecretName
	case "namespace":
		c.Namespace = v.Namespace
	case "kubeconfig":
		c.KubeConfigPath = v.KubeConfigPath
	case "kube-context":
		c.KubeContext = v.KubeContext
	case "tls-auto-generate":
		c.TLSAutoGenerate = v.TLSAutoGenerate
	case "tls-renewal-threshold-days":
		c.TLSRenewalThresholdDays = v.TLSRenewalThresholdDays
	case "max-connections":
		c.MaxConnections = v.MaxConnections
	case "rate-limit":
		c.RateLimit = v.RateLimit
	case "rate-burst":
		c.RateBurst = v.RateBurst
	case "health-addr":
		c.HealthAddr = v.HealthAddr
	case "debug":
		c.Debug = v.Debug
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.Hostname = getEnv("HOSTNAME_BIND", c.Hostname)
	c.Port = getEnvInt("PORT", c.Port)
	c.Root = getEnv("SERVE_ROOT", c.Root)
	c.MaxConnections = getEnvInt("MAX_CONNECTIONS", c.MaxConnections)
	c.RateLimit = getEnvFloat("RATE_LIMIT", c.RateLimit)
	c.RateBurst = getEnvInt("RATE_BURST", c.RateBurst)
	c.HealthAddr = getEnv("HEALTH_ADDR", c.HealthAddr)

	if mode := os.Getenv("TLS_MODE"); mode != "" {
		parsed, err := ParseTLSMode(mode)
		if err != nil {
			return err
		}
		c.TLSMode = parsed
	}
	c.CertFile = getEnv("TLS_CERT_FILE", c.CertFile)
	c.KeyFile = getEnv("TLS_KEY_FILE", c.KeyFile)
	c.TLSSecretName = getEnv("TLS_SECRET_NAME", c.TLSSecretName)
	c.TLSAutoGenerate = getEnvBool("TLS_AUTO_GENERATE", c.TLSAutoGenerate)
	c.TLSRenewalThresholdDays = getEnvInt("TLS_RENEWAL_THRESHOLD_DAYS", c.TLSRenewalThresholdDays)

	c.KubeConfigPath = getEnv("KUBECONFIG", c.KubeConfigPath)
	c.KubeContext = getEnv("KUBE_CONTEXT", c.KubeContext)
	return nil
}

// validate ensures configuration is coherent and resolves the serving root.
func (c *Config) validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("hostname must not be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range (0-65535)", c.Port)
	}

	mode, err := ParseTLSMode(string(c.TLSMode))
	if err != nil {
		return err
	}
	c.TLSMode = mode

	switch c.TLSMode {
	case TLSModeFile:
		if c.CertFile == "" {
			return fmt.Errorf("--cert must be set when using file-based TLS")
		}
	case TLSModeKubernetes:
		if c.TLSSecretName == "" {
			return fmt.Errorf("--tls-secret must be set when using kubernetes TLS mode")
		}
	}

	if c.TLSRenewalThresholdDays < 0 {
		return fmt.Errorf("tls renewal threshold must not be negative")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max connections must not be negative")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve serving root %s: %w", c.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("serving root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("serving root %s is not a directory", root)
	}
	c.Root = root

	return nil
}

// ServedKeyFiles returns the certificate and key files of file-based TLS
// that lie inside the serving root and would therefore be downloadable.
func (c *Config) ServedKeyFiles() []string {
	if c.TLSMode != TLSModeFile {
		return nil
	}

	var served []string
	seen := make(map[string]bool)
	for _, name := range []string{c.CertFile, c.KeyFile} {
		if name == "" {
			continue
		}
		abs, err := filepath.Abs(name)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		rel, err := filepath.Rel(c.Root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		served = append(served, abs)
	}
	return served
}

// ParseTLSMode accepts the canonical mode names and their aliases.
func ParseTLSMode(mode string) (TLSMode, error) {
	switch strings.ToLower(mode) {
	case "file", "filesystem":
		return TLSModeFile, nil
	case "kubernetes", "k8s", "secret":
		return TLSModeKubernetes, nil
	case "memory", "in-memory":
		return TLSModeMemory, nil
	}
	return "", fmt.Errorf("unsupported TLS mode: %s (supported: file, kubernetes, memory)", mode)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

func determineNamespace() string {
	// Explicit namespace
	if ns := os.Getenv("NAMESPACE"); ns != "" {
		return ns
	}

	// Kubernetes downward API
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return ns
	}

	// Read from service account (in-cluster)
	if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(data))
	}

	return "default"
}
