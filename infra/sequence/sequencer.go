package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing identifiers. Control blocks
// take one each so log lines and lifecycle events can be correlated.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next identifier.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued identifier.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Default is shared by every block created without an explicit sequencer.
var Default = New(0)
