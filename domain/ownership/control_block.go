package ownership

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"

	"sharedref/infra/memory"
)

type blockState uint8

const (
	live blockState = iota
	objectDead
	gone
)

func (s blockState) String() string {
	switch s {
	case live:
		return "live"
	case objectDead:
		return "object-dead"
	default:
		return "gone"
	}
}

// destroyer is the per-variant destruction capability.
type destroyer interface {
	destroyObject()
}

// controlBlock is the bookkeeping shared by every handle to one object.
// Variants embed it and register themselves as its destroyer.
//
// Object alive iff strong > 0. Block alive iff strong > 0 || weak > 0.
type controlBlock struct {
	strong int
	weak   int
	state  blockState

	id      uint64
	size    uintptr
	variant Variant
	obj     destroyer

	alloc    memory.Allocator
	log      logr.Logger
	observer Observer
}

// setup starts the block with one strong reference. The storage must
// already be accounted against cfg.alloc.
func (b *controlBlock) setup(obj destroyer, v Variant, size uintptr, cfg config) {
	b.strong = 1
	b.weak = 0
	b.state = live
	b.id = cfg.ids.Next()
	b.size = size
	b.variant = v
	b.obj = obj
	b.alloc = cfg.alloc
	b.log = cfg.log
	b.observer = cfg.observer

	b.log.V(1).Info("control block allocated", "block", b.id, "variant", v.String(), "size", size)
	b.emit(BlockAllocated)
}

// addStrong is only called by a holder of a strong reference, or by Lock
// after it has checked that the object is alive.
func (b *controlBlock) addStrong() {
	if b.strong <= 0 {
		panic(errors.AssertionFailedf("ownership: add strong reference to %s block %d", b.state, b.id))
	}
	b.strong++
}

func (b *controlBlock) addWeak() {
	if b.state == gone {
		panic(errors.AssertionFailedf("ownership: add weak reference to freed block %d", b.id))
	}
	b.weak++
}

// releaseStrong drops one strong reference. The last one destroys the
// object; the block is freed too unless weak references remain.
//
// While the object is being torn down the block holds a weak reference on
// itself, so a teardown that drops the last weak handle to its own block
// cannot free the block underneath us.
func (b *controlBlock) releaseStrong() {
	if b.strong <= 0 {
		panic(errors.AssertionFailedf("ownership: release strong reference of %s block %d", b.state, b.id))
	}
	b.strong--
	if b.strong > 0 {
		return
	}

	obj := b.obj
	b.obj = nil
	b.state = objectDead
	b.weak++
	obj.destroyObject()
	b.log.V(1).Info("object destroyed", "block", b.id, "variant", b.variant.String())
	b.emit(ObjectDestroyed)

	b.releaseWeak()
}

// releaseWeak drops one weak reference and frees the block if it was the
// last reference of either kind.
func (b *controlBlock) releaseWeak() {
	if b.weak <= 0 {
		panic(errors.AssertionFailedf("ownership: release weak reference of %s block %d", b.state, b.id))
	}
	b.weak--
	if b.weak == 0 && b.strong == 0 {
		b.free()
	}
}

func (b *controlBlock) strongCount() int { return b.strong }

func (b *controlBlock) weakCount() int { return b.weak }

func (b *controlBlock) free() {
	b.state = gone
	b.alloc.Free(b.size)
	b.log.V(1).Info("control block freed", "block", b.id, "variant", b.variant.String())
	b.emit(BlockFreed)
}

func (b *controlBlock) emit(k EventKind) {
	if b.observer == nil {
		return
	}
	b.observer.Observe(Event{Kind: k, Block: b.id, Variant: b.variant, Size: b.size})
}

// Destroyer is implemented by objects that need explicit teardown when
// their last owner lets go.
type Destroyer interface {
	Destroy()
}

// destroyValue runs v's teardown hook, if it has one.
func destroyValue(v any, log logr.Logger) {
	switch d := v.(type) {
	case Destroyer:
		d.Destroy()
	case io.Closer:
		if err := d.Close(); err != nil {
			log.Error(err, "close on final release failed")
		}
	}
}

// DefaultDeleter returns the deleter used by New: it calls Destroy or
// Close when *T implements them and otherwise leaves the object to the
// garbage collector.
func DefaultDeleter[T any](log logr.Logger) func(*T) {
	return func(p *T) {
		if p != nil {
			destroyValue(p, log)
		}
	}
}
