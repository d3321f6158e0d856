package directory

import (
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"chatd/internal/config"
)

// Hasher turns a plaintext password into an opaque hash and verifies
// candidates against it. Verify must treat any malformed stored hash
// as a mismatch, never as an error.
type Hasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, hash []byte) bool
}

type sha512Hasher struct{}

// SHA512 returns the plain SHA-512 hasher the wire protocol defaults
// to. It is not a KDF; use Bcrypt for real deployments.
func SHA512() Hasher { return sha512Hasher{} }

func (sha512Hasher) Hash(password string) ([]byte, error) {
	sum := sha512.Sum512([]byte(password))
	return sum[:], nil
}

func (sha512Hasher) Verify(password string, hash []byte) bool {
	sum := sha512.Sum512([]byte(password))
	return subtle.ConstantTimeCompare(sum[:], hash) == 1
}

type bcryptHasher struct {
	cost int
}

// Bcrypt returns a bcrypt hasher at the default cost.
func Bcrypt() Hasher { return bcryptHasher{cost: bcrypt.DefaultCost} }

func (h bcryptHasher) Hash(password string) ([]byte, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt password: %w", err)
	}
	return out, nil
}

func (h bcryptHasher) Verify(password string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// HasherByName maps a configuration selector to a Hasher.
func HasherByName(name string) (Hasher, error) {
	switch name {
	case config.HashSHA512:
		return SHA512(), nil
	case config.HashBcrypt:
		return Bcrypt(), nil
	default:
		return nil, fmt.Errorf("unknown password hash %q", name)
	}
}
