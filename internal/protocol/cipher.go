package protocol

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidData marks bytes that decrypted or decoded to something
// that does not conform to the protocol.
var ErrInvalidData = errors.New("invalid data")

// ErrInvalidInput marks a malformed argument, including a frame too
// large to send.
var ErrInvalidInput = errors.New("invalid input")

// Cipher transforms whole frame payloads. Implementations need not
// authenticate; any decryption failure surfaces as ErrInvalidData.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type identityCipher struct{}

// IdentityCipher returns the default plaintext-passthrough cipher.
func IdentityCipher() Cipher { return identityCipher{} }

func (identityCipher) Encrypt(b []byte) ([]byte, error) { return b, nil }
func (identityCipher) Decrypt(b []byte) ([]byte, error) { return b, nil }

type aeadCipher struct {
	aead cipher.AEAD
}

// NewChaCha20Poly1305 returns a frame cipher that seals each payload
// with a fresh random nonce prepended to the ciphertext.
func NewChaCha20Poly1305(key []byte) (Cipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: chacha20poly1305 key: %v", ErrInvalidInput, err)
	}
	return aeadCipher{aead: aead}, nil
}

func (c aeadCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c aeadCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrInvalidData)
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return plaintext, nil
}
