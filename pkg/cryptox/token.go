package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TokenSize256 is 32 random bytes, rendered as 64 hex characters.
const TokenSize256 = 32

// GenerateHexToken returns size random bytes encoded as lowercase hex.
func GenerateHexToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// FingerprintToken returns the base64url SHA-256 of token. Stored in place
// of refresh tokens and invitation tokens so a database leak does not leak
// usable credentials.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MatchFingerprint reports whether token hashes to fingerprint, in constant
// time.
func MatchFingerprint(token, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(FingerprintToken(token)), []byte(fingerprint)) == 1
}
