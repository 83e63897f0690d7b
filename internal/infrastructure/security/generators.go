// Package security provides secure random generation utilities
package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/oklog/ulid/v2"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSecureToken generates a cryptographically secure random token suitable for URLs.
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// RandomBase36 returns a random base36 string of the given length, matching
// the format client agents use for visitor and session id suffixes.
func RandomBase36(length int) string {
	max := big.NewInt(int64(len(base36Alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure leaves a zero digit rather than aborting id generation
			out[i] = base36Alphabet[0]
			continue
		}
		out[i] = base36Alphabet[n.Int64()]
	}
	return string(out)
}
