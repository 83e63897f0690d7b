package agent

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintFallback is returned when no rendering surface is available or
// rendering fails. Identity never depends on fingerprint entropy.
const fingerprintFallback = "nofp"

// FingerprintSurface exposes whatever rendering output the embedding host
// can produce for device fingerprinting. The output only needs to be stable
// per device, not unique.
type FingerprintSurface interface {
	Render() ([]byte, error)
}

// fingerprint hashes the surface output down to a low-entropy device token.
// It degrades to a constant rather than failing; a missing or broken surface
// must never prevent session id synthesis.
func fingerprint(surface FingerprintSurface) string {
	if surface == nil {
		return fingerprintFallback
	}
	data, err := surface.Render()
	if err != nil || len(data) == 0 {
		return fingerprintFallback
	}
	sum := blake2b.Sum256(data)
	// Truncated to 4 bytes: low entropy by design, enough to disambiguate
	// concurrent session creation on different devices.
	return hex.EncodeToString(sum[:4])
}
