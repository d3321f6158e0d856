// Package msglog is the append-only store of accepted messages. Ids
// are dense, start at 1 and match global insertion order.
package msglog

import (
	"sync"
	"time"

	"chatd/internal/protocol"
)

// Log assigns ids and keeps every accepted message in insertion
// order. It is bounded only by process memory.
type Log struct {
	mu   sync.RWMutex
	msgs []protocol.Message
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Push appends msg and returns its id. The id is allocated under the
// same lock as the insertion, so id order is insertion order.
func (l *Log) Push(msg protocol.Message) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
	return uint64(len(l.msgs))
}

// ForEachAfter visits every message with id strictly greater than
// after, in increasing id order, under the read lock. The visitor
// must not re-enter the log.
func (l *Log) ForEachAfter(after uint64, visit func(id uint64, msg protocol.Message)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := int(after); i < len(l.msgs); i++ {
		visit(uint64(i+1), l.msgs[i])
	}
}

// ForEachSince visits the newest limit messages stamped at or after
// since, oldest first, under the read lock.
func (l *Log) ForEachSince(since time.Time, limit int, visit func(id uint64, msg protocol.Message)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := len(l.msgs)
	for start > 0 && len(l.msgs)-start < limit && !l.msgs[start-1].DateTime.Before(since) {
		start--
	}
	for i := start; i < len(l.msgs); i++ {
		visit(uint64(i+1), l.msgs[i])
	}
}

// Len returns the number of accepted messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}
