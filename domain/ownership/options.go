package ownership

import (
	"github.com/go-logr/logr"

	"sharedref/infra/memory"
	"sharedref/infra/sequence"
)

type config struct {
	alloc    memory.Allocator
	log      logr.Logger
	observer Observer
	ids      *sequence.Sequencer
}

// Option configures the control block created by a constructor.
type Option func(*config)

// WithAllocator accounts the control block against a. The default is
// memory.Default.
func WithAllocator(a memory.Allocator) Option {
	return func(c *config) { c.alloc = a }
}

// WithLogger logs lifecycle transitions at V(1).
func WithLogger(l logr.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithObserver reports lifecycle events of the block to o.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithIDs draws block identifiers from s instead of sequence.Default.
func WithIDs(s *sequence.Sequencer) Option {
	return func(c *config) { c.ids = s }
}

func newConfig(opts []Option) config {
	c := config{
		alloc: memory.Default,
		log:   logr.Discard(),
		ids:   sequence.Default,
	}
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	if c.alloc == nil {
		c.alloc = memory.Default
	}
	if c.ids == nil {
		c.ids = sequence.Default
	}
	return c
}
