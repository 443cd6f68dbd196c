package ir

import "sync/atomic"

// Sequence hands out dense, strictly increasing ids for values and blocks
// within one function. Printing relies on the order, so ids are never
// reused after a rewrite removes their owner.
type Sequence struct {
	n atomic.Uint32
}

// Next returns the next id. The first call returns 0.
func (s *Sequence) Next() uint32 {
	return s.n.Add(1) - 1
}

// Current returns how many ids have been handed out.
func (s *Sequence) Current() uint32 {
	return s.n.Load()
}
