package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrUnseal is returned when ciphertext is truncated, tampered with, or was
// sealed under another key or purpose.
var ErrUnseal = errors.New("cryptox: unable to unseal")

// MinSecretSize is the shortest secret NewSealer accepts.
const MinSecretSize = 16

// Sealer encrypts small values at rest with XChaCha20-Poly1305. Output is
// [24-byte nonce][ciphertext][16-byte tag].
type Sealer struct {
	purpose []byte
	key     [chacha20poly1305.KeySize]byte
}

// NewSealer derives a key for purpose from secret with HKDF-SHA256. Sealers
// with different purposes cannot open each other's output.
func NewSealer(secret []byte, purpose string) (*Sealer, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("cryptox: sealer secret must be at least %d bytes", MinSecretSize)
	}

	s := &Sealer{purpose: []byte(purpose)}
	kdf := hkdf.New(sha256.New, secret, nil, []byte("sessiongate/"+purpose))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("cryptox: derive key: %w", err)
	}
	return s, nil
}

// Seal encrypts plaintext. The purpose is bound as additional data.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, s.purpose), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrUnseal
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, s.purpose)
	if err != nil {
		return nil, ErrUnseal
	}
	return plaintext, nil
}
