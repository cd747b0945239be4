package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

const (
	// KeySize is the raw length of a WireGuard key.
	KeySize = curve25519.ScalarSize
	// EncodedKeyLength is the length of a base64-encoded WireGuard key.
	EncodedKeyLength = 44
)

var (
	ErrKeyGeneration    = errors.New("key generation failed")
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// KeyPair holds base64-encoded key material. PrivateKey is empty when the
// operator supplied only a public key.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// Generator produces key pairs for new devices.
type Generator interface {
	Generate() (KeyPair, error)
}

// X25519Generator generates WireGuard-compatible key pairs.
type X25519Generator struct {
	rand io.Reader
}

func NewGenerator() *X25519Generator {
	return &X25519Generator{rand: rand.Reader}
}

// NewGeneratorWithSource is used by tests to inject a failing entropy source.
func NewGeneratorWithSource(r io.Reader) *X25519Generator {
	return &X25519Generator{rand: r}
}

func (g *X25519Generator) Generate() (KeyPair, error) {
	var priv [KeySize]byte
	if _, err := io.ReadFull(g.rand, priv[:]); err != nil {
		return KeyPair{}, fmt.Errorf("%w: failed to read random bytes: %v", ErrKeyGeneration, err)
	}

	// Clamp per RFC 7748
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	return KeyPair{
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(priv[:]),
	}, nil
}

// PublicKeyFor derives the public key of a base64-encoded private key.
func PublicKeyFor(privateKey string) (string, error) {
	priv, err := decodeKey(privateKey)
	if err != nil {
		return "", err
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}

// ValidatePublicKey accepts exactly 44 base64 characters decoding to 32 bytes.
func ValidatePublicKey(key string) error {
	_, err := decodeKey(key)
	return err
}

func decodeKey(key string) ([]byte, error) {
	if len(key) != EncodedKeyLength {
		return nil, fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidPublicKey, EncodedKeyLength, len(key))
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, KeySize, len(raw))
	}
	return raw, nil
}
