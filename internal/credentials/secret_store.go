package credentials

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/tokenresolver/pkg/logging"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// Default keys read from a client Secret.
const (
	DefaultClientIDKey     = "client-id"
	DefaultClientSecretKey = "client-secret"
	DefaultAuthorityKey    = "authority"
	DefaultScopeKey        = "scope"
)

// SecretKeys names the Secret data keys holding each field.
type SecretKeys struct {
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
	Authority    string `yaml:"authority,omitempty"`
	Scope        string `yaml:"scope,omitempty"`
}

// SecretStoreConfig locates client Secrets.
type SecretStoreConfig struct {
	Namespace string

	// NamePrefix is prepended to the client name to form the Secret name.
	NamePrefix string

	Keys SecretKeys
}

// SecretStore reads client registrations from Kubernetes Secrets named
// <prefix><client name>.
type SecretStore struct {
	client client.Client
	config SecretStoreConfig
}

var _ Store = (*SecretStore)(nil)

// NewSecretStore creates a store. Empty namespace and keys take defaults.
func NewSecretStore(k8sClient client.Client, config SecretStoreConfig) *SecretStore {
	if config.Namespace == "" {
		config.Namespace = "default"
	}
	if config.Keys.ClientID == "" {
		config.Keys.ClientID = DefaultClientIDKey
	}
	if config.Keys.ClientSecret == "" {
		config.Keys.ClientSecret = DefaultClientSecretKey
	}
	if config.Keys.Authority == "" {
		config.Keys.Authority = DefaultAuthorityKey
	}
	if config.Keys.Scope == "" {
		config.Keys.Scope = DefaultScopeKey
	}

	return &SecretStore{
		client: k8sClient,
		config: config,
	}
}

// Lookup reads the Secret for clientName. A missing Secret yields nil, nil.
// Missing keys leave fields empty; the resolver rejects incomplete
// configurations.
func (s *SecretStore) Lookup(ctx context.Context, clientName string) (*oauth.ClientConfig, error) {
	name := s.config.NamePrefix + clientName

	logging.Debug("Credentials", "Loading client configuration from secret %s/%s", s.config.Namespace, name)

	secret := &corev1.Secret{}
	if err := s.client.Get(ctx, client.ObjectKey{
		Name:      name,
		Namespace: s.config.Namespace,
	}, secret); err != nil {
		if apierrors.IsNotFound(err) {
			logging.Debug("Credentials", "Secret %s/%s not found", s.config.Namespace, name)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", s.config.Namespace, name, err)
	}

	cfg := &oauth.ClientConfig{
		ClientID:     string(secret.Data[s.config.Keys.ClientID]),
		ClientSecret: string(secret.Data[s.config.Keys.ClientSecret]),
		Authority:    string(secret.Data[s.config.Keys.Authority]),
		Scope:        string(secret.Data[s.config.Keys.Scope]),
	}

	logging.Debug("Credentials", "Loaded client configuration from secret %s/%s (client_id=%s)",
		s.config.Namespace, name, cfg.ClientID)

	return cfg, nil
}
