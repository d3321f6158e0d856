package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNotConnected is returned when a peer address has no live session.
var ErrNotConnected = errors.New("client not connected")

// ClientInfo is a point-in-time view of one registry entry.
type ClientInfo struct {
	Addr     string `json:"addr"`
	Nickname string `json:"nickname,omitempty"`
}

// Registry maps peer addresses to live sessions. Removal from the
// registry is the single point at which a session becomes eligible
// for teardown.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add inserts a session keyed by its peer address. Inserting a
// duplicate is a programming error and panics.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.Addr()]; ok {
		panic(fmt.Sprintf("client %s already connected", s.Addr()))
	}
	r.sessions[s.Addr()] = s
	slog.Info("client connected", "peer", s.Addr(), "total_clients", len(r.sessions))
}

// Remove deletes and returns the session for addr.
func (r *Registry) Remove(addr string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, addr)
	}
	delete(r.sessions, addr)
	slog.Info("client disconnected", "peer", addr, "total_clients", len(r.sessions))
	return s, nil
}

// Nickname returns the bound nickname of the session at addr, or the
// empty string while it is unauthenticated.
func (r *Registry) Nickname(addr string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[addr]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotConnected, addr)
	}
	return s.Nickname(), nil
}

// ForEach visits every session under the read lock. The visitor must
// not call Add or Remove; it may call session methods, whose lock is
// a leaf with respect to the registry lock.
func (r *Registry) ForEach(visit func(addr string, s *Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for addr, s := range r.sessions {
		visit(addr, s)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a copy of the registry contents.
func (r *Registry) Snapshot() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ClientInfo, 0, len(r.sessions))
	for addr, s := range r.sessions {
		out = append(out, ClientInfo{Addr: addr, Nickname: s.Nickname()})
	}
	return out
}
