package oidc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// DeriveChallenge computes the S256 PKCE code challenge for a verifier:
// base64url-encoded SHA-256 of the ASCII verifier, without padding.
func DeriveChallenge(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateCodeVerifier returns a cryptographically random code verifier
// with 64 bytes of entropy, base64url encoded without padding. The
// resulting 86 characters stay within RFC 7636's 43-128 range.
func GenerateCodeVerifier() (string, error) {
	return randomToken(64)
}

// randomToken returns n random bytes as an unpadded base64url string.
func randomToken(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
