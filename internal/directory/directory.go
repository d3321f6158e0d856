// Package directory holds the in-memory user table: nickname to
// password hash and last-delivered message cursor.
package directory

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNotFound is returned when a nickname has no directory entry.
var ErrNotFound = errors.New("user not found")

// ErrAlreadyExists is returned when registering a taken nickname.
var ErrAlreadyExists = errors.New("user already exists")

// ErrPermissionDenied is returned when a nickname fails the defensive
// validity re-check on registration.
var ErrPermissionDenied = errors.New("permission denied")

// ValidNickname reports whether every byte of nick is printable ASCII
// (0x20..0x7E) and nick is non-empty.
func ValidNickname(nick string) bool {
	if len(nick) == 0 {
		return false
	}
	for i := 0; i < len(nick); i++ {
		if nick[i] < 0x20 || nick[i] > 0x7E {
			return false
		}
	}
	return true
}

type user struct {
	passwordHash  []byte
	lastDelivered uint64
	hasDelivered  bool
}

// Directory is the process-wide user registry. Users are created by
// registration and never removed. Plaintext passwords are hashed
// inside Add and Verify and never stored.
type Directory struct {
	mu     sync.RWMutex
	users  map[string]*user
	hasher Hasher
}

// New returns an empty directory hashing with h (SHA-512 when nil).
func New(h Hasher) *Directory {
	if h == nil {
		h = SHA512()
	}
	return &Directory{users: make(map[string]*user), hasher: h}
}

// Exists reports whether nick has a directory entry.
func (d *Directory) Exists(nick string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[nick]
	return ok
}

// Add registers a new user. The caller checks the admission policy
// first; Add still re-checks basic nickname validity defensively.
func (d *Directory) Add(nick, password string) error {
	if !ValidNickname(nick) {
		return fmt.Errorf("%w: nickname %q is not printable ASCII", ErrPermissionDenied, nick)
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password for %q: %w", nick, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[nick]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, nick)
	}
	d.users[nick] = &user{passwordHash: hash}
	slog.Info("user registered", "nickname", nick, "total_users", len(d.users))
	return nil
}

// Verify reports whether password matches nick's stored hash. An
// unknown user and a wrong password are indistinguishable.
func (d *Directory) Verify(nick, password string) bool {
	d.mu.RLock()
	u, ok := d.users[nick]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	return d.hasher.Verify(password, u.passwordHash)
}

// LastDelivered returns the largest message id acknowledged as
// delivered to nick. delivered is false until the first delivery.
func (d *Directory) LastDelivered(nick string) (id uint64, delivered bool, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[nick]
	if !ok {
		return 0, false, fmt.Errorf("%w: %q", ErrNotFound, nick)
	}
	return u.lastDelivered, u.hasDelivered, nil
}

// SetLastDelivered advances nick's delivery cursor. Ids not strictly
// greater than the current cursor are ignored, which keeps the cursor
// non-regressing under concurrent delivery.
func (d *Directory) SetLastDelivered(nick string, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[nick]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, nick)
	}
	if u.hasDelivered && id <= u.lastDelivered {
		return nil
	}
	u.lastDelivered = id
	u.hasDelivered = true
	return nil
}

// Count returns the number of registered users.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
