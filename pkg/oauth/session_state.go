package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// saltBytes is the number of random bytes behind a generated session state salt.
const saltBytes = 16

// GenerateSessionState computes the OIDC Session Management session_state
// value for a client:
//
//	base64url(SHA256(clientID + origin(redirectURI) + sessionID + salt)) + "." + salt
//
// An empty salt is replaced by 16 fresh random bytes. Passing the salt of a
// previous result reproduces it exactly, which is how a check-session iframe
// verifies the state without holding any secret.
func GenerateSessionState(salt, clientID, redirectURI, sessionID string) (string, error) {
	if salt == "" {
		var err error
		salt, err = randomString(saltBytes)
		if err != nil {
			return "", fmt.Errorf("failed to generate session state salt: %w", err)
		}
	}

	origin, err := Origin(redirectURI)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(clientID))
	h.Write([]byte(origin))
	h.Write([]byte(sessionID))
	h.Write([]byte(salt))

	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)) + "." + salt, nil
}

// SplitSessionState splits a session state into its hash and salt parts.
func SplitSessionState(state string) (hash, salt string, ok bool) {
	idx := strings.LastIndex(state, ".")
	if idx <= 0 || idx == len(state)-1 {
		return "", "", false
	}
	return state[:idx], state[idx+1:], true
}

// VerifySessionState recomputes a session state with the salt embedded in
// state and compares the two in constant time.
func VerifySessionState(state, clientID, redirectURI, sessionID string) bool {
	_, salt, ok := SplitSessionState(state)
	if !ok {
		return false
	}

	expected, err := GenerateSessionState(salt, clientID, redirectURI, sessionID)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(expected), []byte(state)) == 1
}

// Origin returns scheme://host[:port] for an absolute URI. Default ports
// (80 for http, 443 for https) are omitted.
func Origin(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("redirect URI %q is not absolute", rawURI)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	port := u.Port()
	if port == "" || (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return scheme + "://" + host, nil
	}
	return scheme + "://" + host + ":" + port, nil
}
