package memory

import "sync/atomic"

const inactive = ^uint64(0)

// Epoch is a monotonically increasing reclamation clock.
type Epoch struct {
	v atomic.Uint64
}

func (e *Epoch) Load() uint64 {
	return e.v.Load()
}

func (e *Epoch) Advance() uint64 {
	return e.v.Add(1)
}

// ReaderEpoch marks when a reader entered a read section.
type ReaderEpoch struct {
	clock *Epoch
	epoch atomic.Uint64
}

// NewReaderEpoch returns an idle reader bound to clock.
func NewReaderEpoch(clock *Epoch) *ReaderEpoch {
	r := &ReaderEpoch{clock: clock}
	r.epoch.Store(inactive)
	return r
}

func (r *ReaderEpoch) Enter() {
	r.epoch.Store(r.clock.Load())
}

func (r *ReaderEpoch) Exit() {
	r.epoch.Store(inactive)
}

func (r *ReaderEpoch) Value() uint64 {
	return r.epoch.Load()
}

// Active reports whether the reader is inside a read section.
func (r *ReaderEpoch) Active() bool {
	return r.Value() != inactive
}

// ReclaimablePool is the ONLY requirement for reclamation.
// It is intentionally type-erased.
type ReclaimablePool interface {
	PutAny(any)
}

// Reclaimer moves retired objects from a ring into a pool once no
// registered reader can still observe them.
type Reclaimer struct {
	clock   *Epoch
	ring    *RetireRing
	pool    ReclaimablePool
	readers []*ReaderEpoch
}

func NewReclaimer(ring *RetireRing, pool ReclaimablePool) *Reclaimer {
	return &Reclaimer{clock: &Epoch{}, ring: ring, pool: pool}
}

// Reader registers and returns a new idle reader.
func (rc *Reclaimer) Reader() *ReaderEpoch {
	r := NewReaderEpoch(rc.clock)
	rc.readers = append(rc.readers, r)
	return r
}

// Advance advances the epoch and reclaims retired objects that are safe.
// It returns the number of objects handed back to the pool.
func (rc *Reclaimer) Advance() int {
	return AdvanceEpochAndReclaim(rc.clock, rc.ring, rc.pool, rc.readers...)
}

// AdvanceEpochAndReclaim advances clock and drains ring into pool while
// no reader is active. The ring is FIFO, so once one object is unsafe
// every newer one is too.
func AdvanceEpochAndReclaim(
	clock *Epoch,
	ring *RetireRing,
	pool ReclaimablePool,
	readers ...*ReaderEpoch,
) int {
	clock.Advance()
	if minReaderEpoch(readers...) != inactive {
		return 0
	}

	n := 0
	for {
		obj := ring.Dequeue()
		if obj == nil {
			return n
		}
		pool.PutAny(obj)
		n++
	}
}

func minReaderEpoch(rs ...*ReaderEpoch) uint64 {
	min := inactive
	for _, r := range rs {
		if r == nil {
			continue
		}
		v := r.Value()
		if v < min {
			min = v
		}
	}
	return min
}
