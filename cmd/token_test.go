package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giantswarm/tokenresolver/internal/config"
	"github.com/giantswarm/tokenresolver/internal/credentials"
	"github.com/giantswarm/tokenresolver/internal/resolver"
	"github.com/giantswarm/tokenresolver/internal/testing/mock"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clientConfigYAML(authority string) string {
	return fmt.Sprintf(`
http:
  baseDelay: 1ms
clients:
  svc:
    clientId: svc
    clientSecret: s3cret
    authority: %s
    scope: api
`, authority)
}

func TestTokenCommand(t *testing.T) {
	p := mock.NewProvider(mock.ProviderConfig{ClientID: "svc", ClientSecret: "s3cret"})
	defer p.Close()
	path := writeTestConfig(t, clientConfigYAML(p.URL()))

	t.Run("prints expiry by default", func(t *testing.T) {
		out, _, err := executeCommand(t, "--config", path, "token", "svc")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !strings.Contains(out, "Client:   svc") || !strings.Contains(out, "Expires:") {
			t.Errorf("Unexpected output: %q", out)
		}
		if strings.Contains(out, "at-") {
			t.Errorf("Token must not be printed without --show: %q", out)
		}
	})

	t.Run("prints token with --show", func(t *testing.T) {
		out, _, err := executeCommand(t, "--config", path, "token", "svc", "--show")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if out != "at-2\n" {
			t.Errorf("Expected the second issued token, got %q", out)
		}

		form := p.LastTokenForm()
		if form.Get("grant_type") != oauth.GrantTypeClientCredentials || form.Get("scope") != "api" {
			t.Errorf("Unexpected token form: %v", form)
		}
	})
}

func TestTokenCommand_UnknownClient(t *testing.T) {
	p := mock.NewProvider(mock.ProviderConfig{})
	defer p.Close()
	path := writeTestConfig(t, clientConfigYAML(p.URL()))

	_, stderr, err := executeCommand(t, "--config", path, "token", "other")
	if !errors.Is(err, resolver.ErrNoToken) {
		t.Fatalf("Expected ErrNoToken, got %v", err)
	}
	if getExitCode(err) != ExitCodeNoToken {
		t.Errorf("Expected exit code %d", ExitCodeNoToken)
	}
	if !strings.Contains(stderr, "not registered") {
		t.Errorf("Expected the reason to be logged, got %q", stderr)
	}
	if p.TokenRequests() != 0 {
		t.Errorf("Expected no token requests, got %d", p.TokenRequests())
	}
}

func TestTokenCommand_BadConfig(t *testing.T) {
	path := writeTestConfig(t, "http:\n  maxAttempts: 0\n")

	_, _, err := executeCommand(t, "--config", path, "token", "svc")
	if err == nil || !strings.Contains(err.Error(), "http.maxAttempts") {
		t.Fatalf("Expected a validation error, got %v", err)
	}
}

type staticStore map[string]oauth.ClientConfig

func (s staticStore) Lookup(_ context.Context, name string) (*oauth.ClientConfig, error) {
	cfg, ok := s[name]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func TestNewCachedResolver_KubernetesStore(t *testing.T) {
	p := mock.NewProvider(mock.ProviderConfig{ClientID: "from-secret", ClientSecret: "x"})
	defer p.Close()

	original := newKubernetesStore
	defer func() { newKubernetesStore = original }()

	var gotNamespace string
	newKubernetesStore = func(cfg config.Config) (credentials.Store, error) {
		gotNamespace = cfg.SecretStoreConfig().Namespace
		return staticStore{
			"billing": {ClientID: "from-secret", ClientSecret: "x", Authority: p.URL(), Scope: "billing"},
		}, nil
	}

	cfg := config.Default()
	cfg.Kubernetes.Enabled = true
	cfg.Kubernetes.Namespace = "platform"
	cfg.HTTP.BaseDelay = 0

	r, err := newCachedResolver(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotNamespace != "platform" {
		t.Errorf("Expected namespace platform, got %q", gotNamespace)
	}

	token, err := r.GetClientToken(context.Background(), "billing", nil)
	if err != nil || token != "at-1" {
		t.Fatalf("Expected at-1, got %q (%v)", token, err)
	}
}

func TestNewCachedResolver_KubernetesStoreError(t *testing.T) {
	original := newKubernetesStore
	defer func() { newKubernetesStore = original }()

	newKubernetesStore = func(config.Config) (credentials.Store, error) {
		return nil, errors.New("no kubeconfig")
	}

	cfg := config.Default()
	cfg.Kubernetes.Enabled = true

	if _, err := newCachedResolver(cfg); err == nil {
		t.Fatal("Expected an error")
	}
}
