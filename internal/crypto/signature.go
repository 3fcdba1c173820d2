package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// ParsePublicKeyHex decodes a hex-encoded Ed25519 public key as configured
// in CONTENT_SIGNING_PUBLIC_KEYS.
func ParsePublicKeyHex(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode signing public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signing public key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// ParsePublicKeysHex decodes a list of hex-encoded Ed25519 public keys.
func ParsePublicKeysHex(keys []string) ([]ed25519.PublicKey, error) {
	out := make([]ed25519.PublicKey, 0, len(keys))
	for _, k := range keys {
		pub, err := ParsePublicKeyHex(k)
		if err != nil {
			return nil, err
		}
		out = append(out, pub)
	}
	return out, nil
}

// VerifySignature reports whether signature is a valid Ed25519 detached
// signature over data under any of the trusted public keys.
func VerifySignature(trusted []ed25519.PublicKey, data, signature []byte) bool {
	for _, pub := range trusted {
		if ed25519.Verify(pub, data, signature) {
			return true
		}
	}
	return false
}

// Sign produces an Ed25519 detached signature over data. It exists
// alongside VerifySignature for tests and tooling that need to build
// signed fixtures; the running engine only ever verifies.
func Sign(priv ed25519.PrivateKey, data []byte) []byte {
	return ed25519.Sign(priv, data)
}

// Checksum computes the hex-encoded SHA-256 checksum of data, matching
// the format stored in Asset.Checksum.
func Checksum(data []byte) string {
	return hex.EncodeToString(Hash256(data))
}

// VerifyChecksum reports whether data matches a hex-encoded SHA-256
// checksum previously recorded for it.
func VerifyChecksum(data []byte, checksumHex string) bool {
	want, err := hex.DecodeString(checksumHex)
	if err != nil {
		return false
	}
	got := Hash256(data)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
