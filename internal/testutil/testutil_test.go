package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionSequence(t *testing.T) {
	s := NewSessionSequence("")
	assert.Equal(t, "test-session-0001", s.Next())
	assert.Equal(t, "test-session-0002", s.Next())

	s.Reset()
	assert.Equal(t, "test-session-0001", s.Next())
}

func TestSessionSequence_Concurrent(t *testing.T) {
	s := NewSessionSequence("par")
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestTarget(t *testing.T) {
	info := Target(t, "")
	assert.Equal(t, "x86_64-unknown-linux-gnu", info.Triple)
	assert.True(t, Target(t, "x86_64-pc-windows-msvc").LikeMSVC)
	assert.Equal(t, "test.erl:7:1", Loc(7).String())
}
