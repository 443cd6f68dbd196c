package testutil

import (
	"fmt"
	"sync"
)

// SessionSequence hands out deterministic builder session ids for tests.
//
// Builders default to a random UUIDv7 session; golden log and store
// comparisons need stable ids instead.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SessionSequence struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSessionSequence creates a sequence whose ids start with prefix. An
// empty prefix means "test-session".
//
// The first call to Next() returns "<prefix>-0001".
func NewSessionSequence(prefix string) *SessionSequence {
	if prefix == "" {
		prefix = "test-session"
	}
	return &SessionSequence{prefix: prefix}
}

// Next returns the next session id.
func (s *SessionSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s-%04d", s.prefix, s.seq)
}

// Reset restarts the sequence. After Reset(), Next() returns the first id
// again.
func (s *SessionSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
