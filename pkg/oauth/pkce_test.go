package oauth

import (
	"encoding/base64"
	"testing"

	"golang.org/x/oauth2"
)

func TestHashCodeVerifierS256(t *testing.T) {
	tests := []struct {
		name     string
		verifier string
		want     string
	}{
		{
			name:     "RFC 7636 appendix B",
			verifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
			want:     "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		},
		{
			name:     "short verifier",
			verifier: "abc123",
			want:     "bKE9UspwyIPg8LsQHkJaiehiTeUdstI5JZOvaoQRgJA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HashCodeVerifierS256(tt.verifier)
			if got != tt.want {
				t.Errorf("HashCodeVerifierS256(%q) = %q, want %q", tt.verifier, got, tt.want)
			}
			if len(got) != 43 {
				t.Errorf("challenge length = %d, want 43", len(got))
			}
			if again := HashCodeVerifierS256(tt.verifier); again != got {
				t.Errorf("HashCodeVerifierS256 is not deterministic: %q != %q", again, got)
			}
		})
	}
}

func TestHashCodeVerifierS256_MatchesOAuth2(t *testing.T) {
	verifier := oauth2.GenerateVerifier()
	if got, want := HashCodeVerifierS256(verifier), oauth2.S256ChallengeFromVerifier(verifier); got != want {
		t.Errorf("HashCodeVerifierS256 = %q, oauth2 computes %q", got, want)
	}
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		t.Fatalf("code is not base64url: %v", err)
	}
	if len(raw) != 64 {
		t.Errorf("decoded code length = %d, want 64", len(raw))
	}
}

func TestGenerateSessionID(t *testing.T) {
	id, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("GenerateSessionID() error = %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		t.Fatalf("session id is not base64url: %v", err)
	}
	if len(raw) != 16 {
		t.Errorf("decoded session id length = %d, want 16", len(raw))
	}
}

func TestGenerateCode_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error = %v", err)
		}
		if seen[code] {
			t.Fatal("Generated duplicate code")
		}
		seen[code] = true
	}
}

func TestGeneratePKCE(t *testing.T) {
	pkce, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE() error = %v", err)
	}

	if len(pkce.CodeVerifier) < 43 || len(pkce.CodeVerifier) > 128 {
		t.Errorf("CodeVerifier length = %d, want within 43..128", len(pkce.CodeVerifier))
	}
	if pkce.CodeChallengeMethod != "S256" {
		t.Errorf("CodeChallengeMethod = %q, want %q", pkce.CodeChallengeMethod, "S256")
	}
	if want := oauth2.S256ChallengeFromVerifier(pkce.CodeVerifier); pkce.CodeChallenge != want {
		t.Errorf("CodeChallenge = %q, want %q", pkce.CodeChallenge, want)
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	// 32 bytes = 43 base64url chars
	if len(state) != 43 {
		t.Errorf("state length = %d, want 43", len(state))
	}
}
