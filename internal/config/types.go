package config

import (
	"time"

	"github.com/giantswarm/tokenresolver/internal/credentials"
	"github.com/giantswarm/tokenresolver/internal/discovery"
	"github.com/giantswarm/tokenresolver/internal/httpretry"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// Config is the top-level configuration read from config.yaml.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Clients are static client registrations keyed by client name.
	Clients map[string]oauth.ClientConfig `yaml:"clients,omitempty"`

	// Tenants map a request host to the client used for its session.
	Tenants map[string]oauth.ClientConfig `yaml:"tenants,omitempty"`

	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// HTTPConfig controls outbound calls to providers.
type HTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT"`
	MaxAttempts int           `yaml:"maxAttempts" env:"HTTP_MAX_ATTEMPTS"`
	BaseDelay   time.Duration `yaml:"baseDelay" env:"HTTP_BASE_DELAY"`
}

// DiscoveryConfig controls discovery document caching and validation.
type DiscoveryConfig struct {
	CacheTTL           time.Duration `yaml:"cacheTTL" env:"DISCOVERY_CACHE_TTL"`
	ValidateGrantTypes bool          `yaml:"validateGrantTypes" env:"DISCOVERY_VALIDATE_GRANT_TYPES"`
	ValidateIssuerName bool          `yaml:"validateIssuerName" env:"DISCOVERY_VALIDATE_ISSUER_NAME"`
}

// KubernetesConfig enables the Secret-backed credentials store.
type KubernetesConfig struct {
	Enabled      bool                   `yaml:"enabled" env:"KUBERNETES_ENABLED"`
	Namespace    string                 `yaml:"namespace" env:"KUBERNETES_NAMESPACE"`
	SecretPrefix string                 `yaml:"secretPrefix,omitempty" env:"KUBERNETES_SECRET_PREFIX"`
	Keys         credentials.SecretKeys `yaml:"keys,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:     httpretry.DefaultHTTPTimeout,
			MaxAttempts: httpretry.DefaultMaxAttempts,
			BaseDelay:   httpretry.DefaultBaseDelay,
		},
		Discovery: DiscoveryConfig{
			CacheTTL:           discovery.DefaultCacheTTL,
			ValidateGrantTypes: true,
			ValidateIssuerName: true,
		},
		Kubernetes: KubernetesConfig{
			Namespace: "default",
		},
	}
}

// DiscoveryOptions converts the discovery and retry settings for the
// discovery cache.
func (c Config) DiscoveryOptions() discovery.Options {
	return discovery.Options{
		CacheTTL:           c.Discovery.CacheTTL,
		ValidateGrantTypes: c.Discovery.ValidateGrantTypes,
		ValidateIssuerName: c.Discovery.ValidateIssuerName,
		MaxAttempts:        c.HTTP.MaxAttempts,
		BaseDelay:          c.HTTP.BaseDelay,
	}
}

// SecretStoreConfig converts the Kubernetes settings for credentials.NewSecretStore.
func (c Config) SecretStoreConfig() credentials.SecretStoreConfig {
	return credentials.SecretStoreConfig{
		Namespace:  c.Kubernetes.Namespace,
		NamePrefix: c.Kubernetes.SecretPrefix,
		Keys:       c.Kubernetes.Keys,
	}
}
