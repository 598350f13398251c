package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// codeBytes is the number of random bytes behind a code or code verifier.
	// 64 bytes encode to 86 base64url characters, inside the RFC 7636 43..128 range.
	codeBytes = 64

	// sessionIDBytes is the number of random bytes behind a session id.
	sessionIDBytes = 16

	// stateBytes is the number of random bytes for the OAuth state parameter.
	// 32 bytes encodes to 43 base64url characters, satisfying OAuth servers that
	// require a minimum of 32 characters.
	stateBytes = 32

	// PKCEMethodS256 is the only code challenge method this package produces.
	PKCEMethodS256 = "S256"
)

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) challenge.
type PKCEChallenge struct {
	// CodeVerifier is kept by the client and sent with the code exchange.
	CodeVerifier string

	// CodeChallenge is the S256 hash of the verifier, sent in the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// HashCodeVerifierS256 returns the S256 code challenge for a verifier:
// base64url(SHA256(ascii(verifier))) without padding.
func HashCodeVerifierS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateCode returns 64 cryptographically random bytes, base64url-encoded.
// It is suitable as a PKCE code verifier or an authorization code.
func GenerateCode() (string, error) {
	return randomString(codeBytes)
}

// GenerateSessionID returns 16 cryptographically random bytes, base64url-encoded.
func GenerateSessionID() (string, error) {
	return randomString(sessionIDBytes)
}

// GeneratePKCE generates a new PKCE code verifier and its S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, err := GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       HashCodeVerifierS256(verifier),
		CodeChallengeMethod: PKCEMethodS256,
	}, nil
}

// GenerateState generates a random state parameter for OAuth.
// The state is used to prevent CSRF attacks and link the authorization
// response back to the original request.
func GenerateState() (string, error) {
	return randomString(stateBytes)
}

// randomString reads n bytes from crypto/rand and base64url-encodes them.
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read %d random bytes: %w", n, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
