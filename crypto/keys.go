// Package crypto provides the Ed25519 signing/verification and Blake3
// hashing primitives the consensus core builds on. No custom cryptography
// is implemented here; this package only wires the standard library's
// Ed25519 implementation and the zeebo/blake3 hash function into the
// shapes the rest of the core consumes.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrKeyLoad is returned by key-loading helpers on malformed key material;
// callers map it to the process's key-load exit code.
var ErrKeyLoad = errors.New("crypto: key load error")

// PublicKeySize and SignatureSize mirror ed25519's fixed sizes, named here
// so callers never hardcode magic numbers.
const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
)

// KeyPair holds an Ed25519 signing key alongside its public counterpart.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key pair: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// LoadPrivateKey validates and wraps a raw 64-byte Ed25519 private key.
func LoadPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) != PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrKeyLoad, PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// LoadPublicKey validates and wraps a raw 32-byte Ed25519 public key.
func LoadPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrKeyLoad, PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Sign signs message with priv.
func Sign(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}

// Verify reports whether sig is a valid Ed25519 signature of message by pub.
// It never panics on malformed input; it returns false.
func Verify(pub ed25519.PublicKey, message, sig []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
