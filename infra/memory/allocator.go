package memory

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrOutOfMemory is returned when an allocator refuses a request.
var ErrOutOfMemory = errors.New("memory: out of memory")

// Allocator hands out storage for control blocks. The Go runtime performs
// the actual allocation; an Allocator accounts for it and may refuse it.
type Allocator interface {
	Allocate(size uintptr) error
	Free(size uintptr)
}

// Stats is a point-in-time view of an allocator's counters.
type Stats struct {
	Allocs    uint64
	Frees     uint64
	Failures  uint64
	LiveBytes uint64
}

// Live returns the number of allocations not yet freed.
func (s Stats) Live() uint64 {
	return s.Allocs - s.Frees
}

// StatsSource is implemented by allocators that expose counters.
type StatsSource interface {
	Stats() Stats
}

type counters struct {
	allocs    atomic.Uint64
	frees     atomic.Uint64
	failures  atomic.Uint64
	liveBytes atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Allocs:    c.allocs.Load(),
		Frees:     c.frees.Load(),
		Failures:  c.failures.Load(),
		LiveBytes: c.liveBytes.Load(),
	}
}

func (c *counters) free(size uintptr) {
	live := c.liveBytes.Load()
	if uint64(size) > live {
		panic(errors.Newf("memory: freeing %d bytes with only %d live", size, live))
	}
	c.frees.Add(1)
	c.liveBytes.Add(^uint64(size - 1))
}

// Heap is an Allocator that never refuses a request.
type Heap struct {
	c counters
}

// NewHeap returns an empty heap allocator.
func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) Allocate(size uintptr) error {
	h.c.allocs.Add(1)
	h.c.liveBytes.Add(uint64(size))
	return nil
}

func (h *Heap) Free(size uintptr) {
	h.c.free(size)
}

func (h *Heap) Stats() Stats {
	return h.c.snapshot()
}

// Budget is an Allocator with a cap on live bytes.
type Budget struct {
	limit uint64
	c     counters
}

// NewBudget creates an allocator that refuses any request which would
// push live bytes above limit.
func NewBudget(limit uint64) *Budget {
	return &Budget{limit: limit}
}

func (b *Budget) Allocate(size uintptr) error {
	live := b.c.liveBytes.Load()
	if live+uint64(size) > b.limit {
		b.c.failures.Add(1)
		return errors.Wrapf(ErrOutOfMemory, "allocate %d bytes (live %d, limit %d)", size, live, b.limit)
	}
	b.c.allocs.Add(1)
	b.c.liveBytes.Add(uint64(size))
	return nil
}

func (b *Budget) Free(size uintptr) {
	b.c.free(size)
}

func (b *Budget) Stats() Stats {
	return b.c.snapshot()
}

// Limit returns the configured byte cap.
func (b *Budget) Limit() uint64 {
	return b.limit
}

// Default is the allocator used when none is configured.
var Default Allocator = NewHeap()
