package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyPrefix = "sk_live_"

// GenerateAPIKey returns a new plaintext API key. The caller shows it to
// the user once and stores only its hash.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return keyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashAPIKey returns the hex-encoded SHA-256 digest of a plaintext key.
// The digest is the only form ever persisted or compared.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAPIKey reports whether a bearer credential has the API key shape,
// as opposed to a session token
func LooksLikeAPIKey(credential string) bool {
	return strings.HasPrefix(credential, keyPrefix)
}
