package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giantswarm/tokenresolver/internal/testing/mock"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "none.yaml")
}

func TestDiscoveryCommand(t *testing.T) {
	good := mock.NewProvider(mock.ProviderConfig{})
	defer good.Close()

	out, _, err := executeCommand(t, "--config", missingConfig(t), "discovery", good.URL())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, want := range []string{"AUTHORITY", good.URL(), good.URL() + "/connect/token", "client_secret_post", "S256", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestDiscoveryCommand_InvalidProvider(t *testing.T) {
	good := mock.NewProvider(mock.ProviderConfig{})
	defer good.Close()
	bad := mock.NewProvider(mock.ProviderConfig{Issuer: "https://elsewhere.example.com"})
	defer bad.Close()

	out, stderr, err := executeCommand(t, "--config", missingConfig(t), "discovery", good.URL(), bad.URL())
	if !errors.Is(err, errInvalidProvider) {
		t.Fatalf("Expected errInvalidProvider, got %v", err)
	}
	if !strings.Contains(out, "invalid") {
		t.Errorf("Expected the bad provider to be marked invalid:\n%s", out)
	}
	if !strings.Contains(stderr, "does not match provider address") {
		t.Errorf("Expected the validation failure to be logged, got %q", stderr)
	}

	// The issuer check can be relaxed from the command line.
	_, _, err = executeCommand(t, "--config", missingConfig(t), "discovery", "--skip-issuer-check", bad.URL())
	if err != nil {
		t.Fatalf("Unexpected error with --skip-issuer-check: %v", err)
	}
}

func TestDiscoveryRow(t *testing.T) {
	doc := &oauth.DiscoveryDocument{
		TokenEndpoint:                     "https://login.example.com/token",
		GrantTypesSupported:               []string{oauth.GrantTypeAuthorizationCode},
		TokenEndpointAuthMethodsSupported: []string{oauth.AuthMethodClientSecretPost},
	}

	row := discoveryRow("https://login.example.com", doc)
	if len(row) != 6 {
		t.Fatalf("Expected 6 columns, got %d", len(row))
	}
	if !strings.Contains(row[1].(string), "no client_credentials") {
		t.Errorf("Expected a client_credentials warning, got %v", row[1])
	}
	if !strings.Contains(row[5].(string), "unknown") {
		t.Errorf("Expected PKCE to be reported as unknown without advertised methods, got %v", row[5])
	}

	doc.CodeChallengeMethodsSupported = []string{"plain"}
	row = discoveryRow("https://login.example.com", doc)
	if !strings.Contains(row[5].(string), "no") || strings.Contains(row[5].(string), "S256") {
		t.Errorf("Expected PKCE to be reported as unsupported, got %v", row[5])
	}

	doc.CodeChallengeMethodsSupported = []string{"plain", oauth.PKCEMethodS256}
	row = discoveryRow("https://login.example.com", doc)
	if !strings.Contains(row[5].(string), "S256") {
		t.Errorf("Expected PKCE S256, got %v", row[5])
	}
}

func TestDiscoveryCommand_RequiresArgument(t *testing.T) {
	_, _, err := executeCommand(t, "--config", missingConfig(t), "discovery")
	if err == nil {
		t.Fatal("Expected an argument error")
	}
}
